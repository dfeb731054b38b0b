package result

import (
	"sort"
	"time"

	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/optimizer"
)

// RunMeta echoes the run configuration into the result so downstream
// consumers can reproduce it.
type RunMeta struct {
	Scenarios int     `json:"scenarios"`
	Horizon   int     `json:"horizon"`
	Seed      uint64  `json:"seed"`
	Lambda    float64 `json:"lambda"`
	Quantile  float64 `json:"quantile"`
}

// Attribution decomposes expected cost and tail cost for one unit or fuel.
// TailCost is the mean contribution within the worst-quantile scenarios, so
// the per-unit and per-fuel columns sum to the corresponding fleet figures.
type Attribution struct {
	ExpectedCost float64 `json:"expected_cost"`
	TailCost     float64 `json:"tail_cost"`
}

// RunResult is the stable output schema consumed by the dashboard and
// storage layers. Field names and types are fixed; internal optimizer state
// never leaks into it.
type RunResult struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Meta        RunMeta   `json:"meta"`

	State string `json:"state"`

	Decision model.DispatchDecision `json:"decision"`
	Hedges   []model.HedgeNotional  `json:"hedges"`
	Risk     model.RiskSummary      `json:"risk"`

	// OptimizerCVaR is the CVaR implied by the LP's own variables, kept
	// alongside the empirical figure as a consistency reference.
	OptimizerCVaR float64 `json:"optimizer_cvar"`

	UnitAttribution map[string]Attribution `json:"unit_attribution"`
	FuelAttribution map[string]Attribution `json:"fuel_attribution"`

	// RollingVolatility is the mean realized log-return volatility per fuel
	// across the scenario set.
	RollingVolatility map[string]float64 `json:"rolling_volatility"`
}

// Compose assembles the final result object. It is deterministic given its
// inputs and has no side effects.
func Compose(runID string, generatedAt time.Time, meta RunMeta, opt *optimizer.Result, outcomes []model.CostOutcome, risk model.RiskSummary, volatility map[model.FuelType]float64) *RunResult {
	res := &RunResult{
		RunID:             runID,
		GeneratedAt:       generatedAt,
		Meta:              meta,
		State:             string(opt.State),
		Decision:          opt.Decision,
		Risk:              risk,
		OptimizerCVaR:     opt.CVaR,
		UnitAttribution:   make(map[string]Attribution),
		FuelAttribution:   make(map[string]Attribution),
		RollingVolatility: make(map[string]float64, len(volatility)),
	}

	res.Hedges = make([]model.HedgeNotional, 0, len(opt.Hedge))
	for _, h := range opt.Hedge {
		res.Hedges = append(res.Hedges, h)
	}
	sort.Slice(res.Hedges, func(i, j int) bool { return res.Hedges[i].Fuel.String() < res.Hedges[j].Fuel.String() })

	for f, v := range volatility {
		res.RollingVolatility[f.String()] = v
	}

	if len(outcomes) == 0 {
		return res
	}

	tail := tailScenarios(outcomes, risk.TailCount)
	nAll := float64(len(outcomes))
	nTail := float64(len(tail))
	for _, o := range outcomes {
		inTail := tail[o.Scenario]
		for id, c := range o.UnitFuelCost {
			a := res.UnitAttribution[id]
			a.ExpectedCost += c / nAll
			if inTail {
				a.TailCost += c / nTail
			}
			res.UnitAttribution[id] = a
		}
		for f, c := range o.FuelCostBy {
			a := res.FuelAttribution[f.String()]
			a.ExpectedCost += c / nAll
			if inTail {
				a.TailCost += c / nTail
			}
			res.FuelAttribution[f.String()] = a
		}
	}
	return res
}

// tailScenarios returns the scenario indices of the k worst outcomes by
// total cost.
func tailScenarios(outcomes []model.CostOutcome, k int) map[int]bool {
	if k < 1 {
		k = 1
	}
	if k > len(outcomes) {
		k = len(outcomes)
	}
	sorted := make([]model.CostOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Total > sorted[j].Total })
	tail := make(map[int]bool, k)
	for _, o := range sorted[:k] {
		tail[o.Scenario] = true
	}
	return tail
}
