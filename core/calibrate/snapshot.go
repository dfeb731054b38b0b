// Package calibrate fits unit parameters from a point-in-time telemetry
// snapshot. The snapshot is a structured table keyed by (unit id, timestamp)
// with named numeric columns; where it comes from is the telemetry layer's
// concern.
package calibrate

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Row is one telemetry observation of one unit.
type Row struct {
	UnitID     string
	Timestamp  time.Time
	OutputMW   float64
	FuelMMBtu  float64
	CapacityMW float64
}

// Snapshot is a point-in-time extract of unit telemetry.
type Snapshot struct {
	Rows []Row
}

// ByUnit groups the rows per unit, each group sorted by timestamp.
func (s Snapshot) ByUnit() map[string][]Row {
	out := make(map[string][]Row)
	for _, r := range s.Rows {
		out[r.UnitID] = append(out[r.UnitID], r)
	}
	for id := range out {
		rows := out[id]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	}
	return out
}

var snapshotColumns = []string{"unit_id", "timestamp", "output_mw", "fuel_mmbtu", "capacity_mw"}

// LoadCSV reads a snapshot from CSV with the header
// unit_id,timestamp,output_mw,fuel_mmbtu,capacity_mw. Timestamps are RFC3339.
func LoadCSV(r io.Reader) (Snapshot, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot header: %w", err)
	}
	if len(header) != len(snapshotColumns) {
		return Snapshot{}, fmt.Errorf("snapshot header has %d columns, want %d", len(header), len(snapshotColumns))
	}
	for i, want := range snapshotColumns {
		if header[i] != want {
			return Snapshot{}, fmt.Errorf("snapshot column %d is %q, want %q", i, header[i], want)
		}
	}

	var snap Snapshot
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("read snapshot line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot line %d: bad timestamp: %w", line, err)
		}
		row := Row{UnitID: rec[0], Timestamp: ts}
		for i, dst := range []*float64{&row.OutputMW, &row.FuelMMBtu, &row.CapacityMW} {
			v, err := strconv.ParseFloat(rec[i+2], 64)
			if err != nil {
				return Snapshot{}, fmt.Errorf("snapshot line %d: bad %s: %w", line, snapshotColumns[i+2], err)
			}
			*dst = v
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}
