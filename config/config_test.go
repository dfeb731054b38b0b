package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelhedge/core/model"
)

const sampleYAML = `
units:
  - id: gt1
    fuel: lng
    heat_rate_coeffs: [0, 7.5]
    min_mw: 0
    max_mw: 100
    ramp_mw: 20
  - id: d1
    fuel: diesel
    heat_rate_coeffs: [2, 9, 0.01]
    max_mw: 40
    ramp_mw: 40
    start_cost: 150
market:
  fuels:
    lng:
      price:
        initial: 9
        long_run: 10
        reversion: 0.2
        volatility: 0.05
      shock:
        probability: 0.05
        mode: multiplicative
        magnitude_mu: 0.2
        magnitude_sigma: 0.1
      hedge:
        strike: 9.5
        max_volume: 8000
    diesel:
      price:
        initial: 18
        long_run: 20
        reversion: 0.1
        volatility: 0.08
  load:
    base_mw: 60
    seasonal_mw: 15
    period_steps: 24
    noise_sigma_mw: 3
  reserve:
    mode: absolute
    mw: 10
run:
  scenarios: 500
  horizon: 24
  seed: 42
optimizer:
  lambda: 1
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Run.Scenarios)
	assert.Equal(t, 24, cfg.Run.Horizon)
	assert.Equal(t, uint64(42), cfg.Run.Seed)
	assert.Equal(t, 1.0, cfg.Optimizer.Lambda)
	assert.Equal(t, 0.95, cfg.Optimizer.Quantile)
	assert.Equal(t, "-", cfg.Output.Path)
	assert.False(t, cfg.Publisher.Enabled)

	units, market, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, model.FuelLNG, units[0].Fuel)
	assert.Equal(t, model.FuelDiesel, units[1].Fuel)
	assert.Equal(t, 150.0, units[1].StartCost)

	// fuels ordered by name: diesel before lng
	assert.Equal(t, []model.FuelType{model.FuelDiesel, model.FuelLNG}, market.Fuels)
	assert.Contains(t, market.Hedges, model.FuelLNG)
	assert.NotContains(t, market.Hedges, model.FuelDiesel)
	assert.Contains(t, market.Shocks, model.FuelLNG)
	assert.Equal(t, 9.5, market.Hedges[model.FuelLNG].Strike)
	assert.Equal(t, model.ReserveAbsolute, market.Reserve.Mode)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_RUN__SCENARIOS", "250")
	t.Setenv("K_OPTIMIZER__LAMBDA", "2.5")
	cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Run.Scenarios)
	assert.Equal(t, 2.5, cfg.Optimizer.Lambda)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		rewrite func(string) string
	}{
		{"unknown fuel", func(s string) string { return strings.Replace(s, "fuel: lng", "fuel: plutonium", 1) }},
		{"negative lambda", func(s string) string { return strings.Replace(s, "lambda: 1", "lambda: -2", 1) }},
		{"zero horizon", func(s string) string { return strings.Replace(s, "horizon: 24", "horizon: 0", 1) }},
		{"unit without market entry", func(s string) string { return strings.Replace(s, "fuel: diesel", "fuel: bunker", 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tc.rewrite(sampleYAML)))
			assert.Error(t, err)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	_, _, err := Config{}.Build()
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
