package model

import "fmt"

// ScenarioPath is one simulated realization of load and fuel prices over the
// horizon. Series are stored columnar: index i is time step i, so the time
// index is strictly increasing by construction. A path is owned by the
// generator until returned and read-only afterwards.
type ScenarioPath struct {
	Index  int                    `json:"index"`
	Seed   uint64                 `json:"seed"`
	LoadMW []float64              `json:"load_mw"`
	Prices map[FuelType][]float64 `json:"prices"`
}

// Horizon returns the number of time steps in the path.
func (p ScenarioPath) Horizon() int { return len(p.LoadMW) }

// Validate checks the path against the run's fuel set: every fuel must have
// a full-length price series.
func (p ScenarioPath) Validate(fuels []FuelType) error {
	h := p.Horizon()
	if h == 0 {
		return fmt.Errorf("scenario %d: empty path", p.Index)
	}
	if len(p.Prices) != len(fuels) {
		return fmt.Errorf("scenario %d: fuel set mismatch: %d series for %d fuels", p.Index, len(p.Prices), len(fuels))
	}
	for _, f := range fuels {
		series, ok := p.Prices[f]
		if !ok {
			return fmt.Errorf("scenario %d: missing price series for %s", p.Index, f)
		}
		if len(series) != h {
			return fmt.Errorf("scenario %d: %s series has %d steps, want %d", p.Index, f, len(series), h)
		}
	}
	return nil
}

// MeanPrice returns the arithmetic mean of the fuel's price series. Hedge
// settlement is computed against this average.
func (p ScenarioPath) MeanPrice(f FuelType) float64 {
	series := p.Prices[f]
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}
