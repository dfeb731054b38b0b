package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/optimizer"
)

func sampleInputs() (*optimizer.Result, []model.CostOutcome, model.RiskSummary) {
	opt := &optimizer.Result{
		State: optimizer.StateSolved,
		Decision: model.DispatchDecision{
			Units:    []string{"gt1"},
			OutputMW: [][]float64{{50, 50}},
		},
		Hedge: model.HedgeBook{
			model.FuelDiesel: {Fuel: model.FuelDiesel, VolumeMMBtu: 200, Strike: 20},
			model.FuelLNG:    {Fuel: model.FuelLNG, VolumeMMBtu: 500, Strike: 9},
		},
		CVaR: 1400,
	}
	outcomes := []model.CostOutcome{
		{Scenario: 0, Total: 1000, UnitFuelCost: map[string]float64{"gt1": 1000}, FuelCostBy: map[model.FuelType]float64{model.FuelLNG: 1000}},
		{Scenario: 1, Total: 1200, UnitFuelCost: map[string]float64{"gt1": 1200}, FuelCostBy: map[model.FuelType]float64{model.FuelLNG: 1200}},
		{Scenario: 2, Total: 1400, UnitFuelCost: map[string]float64{"gt1": 1400}, FuelCostBy: map[model.FuelType]float64{model.FuelLNG: 1400}},
		{Scenario: 3, Total: 800, UnitFuelCost: map[string]float64{"gt1": 800}, FuelCostBy: map[model.FuelType]float64{model.FuelLNG: 800}},
	}
	risk := model.RiskSummary{ExpectedCost: 1100, CVaR: 1400, Quantile: 0.95, SampleCount: 4, TailCount: 1}
	return opt, outcomes, risk
}

func TestCompose(t *testing.T) {
	opt, outcomes, risk := sampleInputs()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	meta := RunMeta{Scenarios: 4, Horizon: 2, Seed: 42, Lambda: 1, Quantile: 0.95}
	vol := map[model.FuelType]float64{model.FuelLNG: 0.04}

	res := Compose("run-1", now, meta, opt, outcomes, risk, vol)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, now, res.GeneratedAt)
	assert.Equal(t, meta, res.Meta)
	assert.Equal(t, "solved", res.State)
	assert.Equal(t, 1400.0, res.OptimizerCVaR)
	assert.InDelta(t, 0.04, res.RollingVolatility["lng"], 1e-12)

	// hedges sorted by fuel name: bunker < diesel < lng
	require.Len(t, res.Hedges, 2)
	assert.Equal(t, model.FuelDiesel, res.Hedges[0].Fuel)
	assert.Equal(t, model.FuelLNG, res.Hedges[1].Fuel)

	// expected attribution: mean of {1000,1200,1400,800} = 1100
	// tail attribution: worst 1 outcome is scenario 2
	gt1 := res.UnitAttribution["gt1"]
	assert.InDelta(t, 1100, gt1.ExpectedCost, 1e-9)
	assert.InDelta(t, 1400, gt1.TailCost, 1e-9)
	lng := res.FuelAttribution["lng"]
	assert.InDelta(t, 1100, lng.ExpectedCost, 1e-9)
	assert.InDelta(t, 1400, lng.TailCost, 1e-9)
}

func TestComposeDeterministic(t *testing.T) {
	opt, outcomes, risk := sampleInputs()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	meta := RunMeta{Scenarios: 4, Horizon: 2, Seed: 42, Lambda: 1, Quantile: 0.95}

	a := Compose("run-1", now, meta, opt, outcomes, risk, nil)
	b := Compose("run-1", now, meta, opt, outcomes, risk, nil)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
	assert.Equal(t, a.Hedges, b.Hedges)
}

func TestComposeNoOutcomes(t *testing.T) {
	opt, _, risk := sampleInputs()
	res := Compose("run-2", time.Now(), RunMeta{}, opt, nil, risk, nil)
	assert.Empty(t, res.UnitAttribution)
	assert.Empty(t, res.FuelAttribution)
}

func TestTailScenarios(t *testing.T) {
	outcomes := []model.CostOutcome{
		{Scenario: 0, Total: 10},
		{Scenario: 1, Total: 40},
		{Scenario: 2, Total: 30},
		{Scenario: 3, Total: 20},
	}
	tail := tailScenarios(outcomes, 2)
	assert.Equal(t, map[int]bool{1: true, 2: true}, tail)

	all := tailScenarios(outcomes, 10)
	assert.Len(t, all, 4)

	one := tailScenarios(outcomes, 0)
	assert.Equal(t, map[int]bool{1: true}, one)
}
