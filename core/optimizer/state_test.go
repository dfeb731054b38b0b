package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, 0.95, cfg.Quantile)
	assert.Equal(t, 1e-7, cfg.Tolerance)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	base := Config{Lambda: 1, Quantile: 0.95, Tolerance: 1e-7}
	assert.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative lambda", func(c *Config) { c.Lambda = -1 }},
		{"quantile zero", func(c *Config) { c.Quantile = 0 }},
		{"quantile one", func(c *Config) { c.Quantile = 1 }},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }},
		{"negative timeout", func(c *Config) { c.TimeoutSeconds = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfigTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), Config{}.Timeout())
	assert.Equal(t, 30*time.Second, Config{TimeoutSeconds: 30}.Timeout())
}
