package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "github.com/kilianp07/fuelhedge/core/metrics"
	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/optimizer"
	"github.com/kilianp07/fuelhedge/core/run"
	"github.com/kilianp07/fuelhedge/infra/publish"
)

// Config is the full configuration surface of the engine.
type Config struct {
	Units     []UnitConfig       `json:"units"`
	Market    MarketConfig       `json:"market"`
	Run       run.Params         `json:"run"`
	Optimizer optimizer.Config   `json:"optimizer"`
	Metrics   coremetrics.Config `json:"metrics"`
	Publisher publish.Config     `json:"publisher"`
	Output    OutputConfig       `json:"output"`
}

// UnitConfig describes one generating unit in the configuration file. Fuel
// types are named so files stay readable.
type UnitConfig struct {
	ID             string    `json:"id"`
	Fuel           string    `json:"fuel"`
	HeatRateCoeffs []float64 `json:"heat_rate_coeffs"`
	MinMW          float64   `json:"min_mw"`
	MaxMW          float64   `json:"max_mw"`
	RampMW         float64   `json:"ramp_mw"`
	MinUpSteps     int       `json:"min_up_steps"`
	MinDownSteps   int       `json:"min_down_steps"`
	StartCost      float64   `json:"start_cost"`
}

// FuelConfig bundles the per-fuel market settings: the price process and the
// optional shock overlay and hedge bounds.
type FuelConfig struct {
	Price model.PriceProcess `json:"price"`
	Shock *model.ShockSpec   `json:"shock"`
	Hedge *model.HedgeSpec   `json:"hedge"`
}

// MarketConfig describes the market side of a run, keyed by fuel name.
type MarketConfig struct {
	Fuels   map[string]FuelConfig `json:"fuels"`
	Load    model.LoadProcess     `json:"load"`
	Reserve model.ReservePolicy   `json:"reserve"`
}

// OutputConfig selects where the composed result is written.
type OutputConfig struct {
	// Path is the file the result JSON is written to; "-" means stdout.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "-"
	}
}

// Load reads the configuration from a YAML or JSON file with optional K_
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides. The callback rewrites K_RUN__SCENARIOS
	// to run.scenarios, so the provider splits on the dot it produces.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Run.SetDefaults()
	cfg.Optimizer.SetDefaults()
	cfg.Publisher.SetDefaults()
	cfg.Output.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate builds the model types once to surface configuration errors at
// load time rather than mid-run.
func (c Config) Validate() error {
	if _, _, err := c.Build(); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := c.Publisher.Validate(); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	return nil
}

// Build converts the file-level configuration into the immutable model
// types. Fuels are ordered by name so the run is independent of map
// iteration order.
func (c Config) Build() ([]model.Unit, model.MarketParameters, error) {
	if len(c.Units) == 0 {
		return nil, model.MarketParameters{}, fmt.Errorf("%w: no units configured", model.ErrInvalidInput)
	}
	if len(c.Market.Fuels) == 0 {
		return nil, model.MarketParameters{}, fmt.Errorf("%w: no fuels configured", model.ErrInvalidInput)
	}

	names := make([]string, 0, len(c.Market.Fuels))
	for name := range c.Market.Fuels {
		names = append(names, name)
	}
	sort.Strings(names)

	market := model.MarketParameters{
		Load:    c.Market.Load,
		Reserve: c.Market.Reserve,
		Prices:  make(map[model.FuelType]model.PriceProcess),
		Shocks:  make(map[model.FuelType]model.ShockSpec),
		Hedges:  make(map[model.FuelType]model.HedgeSpec),
	}
	for _, name := range names {
		ft, err := model.ParseFuelType(name)
		if err != nil {
			return nil, model.MarketParameters{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
		fc := c.Market.Fuels[name]
		market.Fuels = append(market.Fuels, ft)
		market.Prices[ft] = fc.Price
		if fc.Shock != nil {
			market.Shocks[ft] = *fc.Shock
		}
		if fc.Hedge != nil {
			market.Hedges[ft] = *fc.Hedge
		}
	}
	if err := market.Validate(); err != nil {
		return nil, model.MarketParameters{}, fmt.Errorf("%w: market: %v", model.ErrInvalidInput, err)
	}

	units := make([]model.Unit, len(c.Units))
	for i, uc := range c.Units {
		ft, err := model.ParseFuelType(uc.Fuel)
		if err != nil {
			return nil, model.MarketParameters{}, fmt.Errorf("%w: unit %s: %v", model.ErrInvalidInput, uc.ID, err)
		}
		units[i] = model.Unit{
			ID:           uc.ID,
			Fuel:         ft,
			HeatRate:     model.HeatRateCurve{Coeffs: uc.HeatRateCoeffs},
			MinMW:        uc.MinMW,
			MaxMW:        uc.MaxMW,
			RampMW:       uc.RampMW,
			MinUpSteps:   uc.MinUpSteps,
			MinDownSteps: uc.MinDownSteps,
			StartCost:    uc.StartCost,
		}
		if err := units[i].Validate(); err != nil {
			return nil, model.MarketParameters{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
		if _, ok := market.Prices[ft]; !ok {
			return nil, model.MarketParameters{}, fmt.Errorf("%w: unit %s burns %s which has no market entry", model.ErrInvalidInput, uc.ID, uc.Fuel)
		}
	}
	return units, market, nil
}
