package model

import "fmt"

// DispatchDecision is a per-unit, per-step output grid. One decision is
// shared across every scenario it is evaluated against; it never adapts to
// an individual path.
type DispatchDecision struct {
	Units    []string    `json:"units"`     // unit IDs, row order of OutputMW
	OutputMW [][]float64 `json:"output_mw"` // [unit][step]
}

// NewDispatchDecision allocates a zero decision for the given units and
// horizon.
func NewDispatchDecision(units []Unit, horizon int) DispatchDecision {
	d := DispatchDecision{
		Units:    make([]string, len(units)),
		OutputMW: make([][]float64, len(units)),
	}
	for i, u := range units {
		d.Units[i] = u.ID
		d.OutputMW[i] = make([]float64, horizon)
	}
	return d
}

// Horizon returns the number of time steps covered by the decision.
func (d DispatchDecision) Horizon() int {
	if len(d.OutputMW) == 0 {
		return 0
	}
	return len(d.OutputMW[0])
}

// Validate checks structural consistency of the grid.
func (d DispatchDecision) Validate() error {
	if len(d.Units) != len(d.OutputMW) {
		return fmt.Errorf("decision has %d unit ids for %d output rows", len(d.Units), len(d.OutputMW))
	}
	h := d.Horizon()
	for i, row := range d.OutputMW {
		if len(row) != h {
			return fmt.Errorf("unit %s output row has %d steps, want %d", d.Units[i], len(row), h)
		}
	}
	return nil
}

// TotalAt returns the fleet output at the given step.
func (d DispatchDecision) TotalAt(step int) float64 {
	var sum float64
	for _, row := range d.OutputMW {
		sum += row[step]
	}
	return sum
}

// HedgeNotional is a per-fuel hedge volume locked at the contracted strike.
// It is chosen once per optimization run and is scenario-independent.
type HedgeNotional struct {
	Fuel        FuelType `json:"fuel"`
	VolumeMMBtu float64  `json:"volume_mmbtu"`
	Strike      float64  `json:"strike"`
}

// HedgeBook holds the hedge notionals of a run keyed by fuel.
type HedgeBook map[FuelType]HedgeNotional
