package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/fuelhedge/core/result"
)

// WriteJSON writes the run result to w in JSON format.
func WriteJSON(w io.Writer, res *result.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteDispatchCSV writes the dispatch grid to w as CSV, one row per
// (unit, step).
func WriteDispatchCSV(w io.Writer, res *result.RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"unit_id", "step", "output_mw"}); err != nil {
		return err
	}
	for i, id := range res.Decision.Units {
		for t, out := range res.Decision.OutputMW[i] {
			rec := []string{
				id,
				strconv.Itoa(t),
				strconv.FormatFloat(out, 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
