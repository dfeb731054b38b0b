package model

// CostOutcome is the realized cost of one (scenario, decision, hedge) triple.
// HedgePnL is the settlement gain: positive values reduce the total.
type CostOutcome struct {
	Scenario  int     `json:"scenario"`
	FuelCost  float64 `json:"fuel_cost"`
	StartCost float64 `json:"start_cost"`
	HedgePnL  float64 `json:"hedge_pnl"`
	Total     float64 `json:"total"`

	// Attribution detail used by the result composer.
	UnitFuelCost map[string]float64   `json:"unit_fuel_cost"`
	FuelCostBy   map[FuelType]float64 `json:"fuel_cost_by_type"`
}

// MinScenariosForCVaR is the smallest sample count for which a CVaR estimate
// is reported without an insufficient-resolution warning. Below it the 5%
// tail holds fewer than one full observation.
const MinScenariosForCVaR = 20

// WarnInsufficientScenarios is attached to a RiskSummary when the sample is
// too small for a stable tail estimate. Expected cost remains meaningful.
const WarnInsufficientScenarios = "insufficient scenarios for a stable CVaR estimate"

// RiskSummary aggregates the cost distribution of a decision across all
// evaluated scenarios. It is computed only after every scenario has been
// evaluated.
type RiskSummary struct {
	ExpectedCost float64  `json:"expected_cost"`
	CVaR         float64  `json:"cvar"`
	Quantile     float64  `json:"quantile"`
	SampleCount  int      `json:"sample_count"`
	TailCount    int      `json:"tail_count"`
	StdError     float64  `json:"std_error"` // bootstrap standard error of the CVaR estimate
	Warnings     []string `json:"warnings,omitempty"`
}
