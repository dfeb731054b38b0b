package montecarlo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/fuelhedge/core/model"
)

func TestRollingVolatilityConstantSeries(t *testing.T) {
	series := []float64{10, 10, 10, 10, 10, 10}
	vol := RollingVolatility(series, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, math.IsNaN(vol[i]), "index %d should be NaN before a full window", i)
	}
	for i := 3; i < len(vol); i++ {
		assert.InDelta(t, 0, vol[i], 1e-12, "constant series has zero volatility")
	}
}

func TestRollingVolatilityShortInputs(t *testing.T) {
	for _, vol := range [][]float64{
		RollingVolatility([]float64{10}, 3),
		RollingVolatility([]float64{10, 11, 12}, 1),
	} {
		for i, v := range vol {
			assert.True(t, math.IsNaN(v), "index %d", i)
		}
	}
}

func TestRollingVolatilityDetectsSwings(t *testing.T) {
	flat := []float64{10, 10, 10, 10, 10, 10, 10, 10}
	swing := []float64{10, 12, 9, 13, 8, 14, 7, 15}
	fv := RollingVolatility(flat, 4)
	sv := RollingVolatility(swing, 4)
	for i := 4; i < len(flat); i++ {
		assert.Greater(t, sv[i], fv[i], "index %d", i)
	}
}

func TestVolatilitySummary(t *testing.T) {
	fuels := []model.FuelType{model.FuelLNG, model.FuelDiesel}
	paths := []model.ScenarioPath{
		{
			Prices: map[model.FuelType][]float64{
				model.FuelLNG:    {10, 10, 10, 10, 10, 10},
				model.FuelDiesel: {20, 24, 18, 26, 16, 28},
			},
		},
		{
			Prices: map[model.FuelType][]float64{
				model.FuelLNG:    {10, 10, 10, 10, 10, 10},
				model.FuelDiesel: {20, 25, 17, 27, 15, 29},
			},
		},
	}
	out := VolatilitySummary(paths, fuels, 3, 4)
	assert.InDelta(t, 0, out[model.FuelLNG], 1e-12)
	assert.Greater(t, out[model.FuelDiesel], 0.0)
}

func TestVolatilitySummaryWindowTooLarge(t *testing.T) {
	paths := []model.ScenarioPath{
		{Prices: map[model.FuelType][]float64{model.FuelLNG: {10, 11}}},
	}
	out := VolatilitySummary(paths, []model.FuelType{model.FuelLNG}, 10, 2)
	_, ok := out[model.FuelLNG]
	assert.False(t, ok, "no full window means no entry")
}
