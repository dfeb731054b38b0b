package model

import "fmt"

// PriceProcess parameterises the mean-reverting stochastic process followed
// by one fuel price. The process is simulated in log space so prices stay
// positive.
type PriceProcess struct {
	Initial    float64 `json:"initial"`    // price at the first step, $/MMBtu
	LongRun    float64 `json:"long_run"`   // level the process reverts towards
	Reversion  float64 `json:"reversion"`  // per-step mean reversion speed in (0,1]
	Volatility float64 `json:"volatility"` // per-step volatility of log returns
}

// Validate checks the process parameters.
func (p PriceProcess) Validate() error {
	if p.Initial <= 0 || p.LongRun <= 0 {
		return fmt.Errorf("price levels must be positive")
	}
	if p.Reversion < 0 || p.Reversion > 1 {
		return fmt.Errorf("reversion speed must be within [0,1]")
	}
	if p.Volatility < 0 {
		return fmt.Errorf("volatility cannot be negative")
	}
	return nil
}

// ShockMode selects how a triggered shock is applied to the price.
type ShockMode string

const (
	ShockAdditive       ShockMode = "additive"
	ShockMultiplicative ShockMode = "multiplicative"
)

// ShockSpec describes a Bernoulli-triggered jump overlay on a fuel price.
// At every step the shock fires with the given probability; its magnitude is
// drawn from a lognormal distribution.
type ShockSpec struct {
	Probability    float64   `json:"probability"`
	Mode           ShockMode `json:"mode"`
	MagnitudeMu    float64   `json:"magnitude_mu"`
	MagnitudeSigma float64   `json:"magnitude_sigma"`
}

// Validate checks the shock parameters.
func (s ShockSpec) Validate() error {
	if s.Probability < 0 || s.Probability > 1 {
		return fmt.Errorf("shock probability must be within [0,1]")
	}
	if s.Probability > 0 && s.Mode != ShockAdditive && s.Mode != ShockMultiplicative {
		return fmt.Errorf("unknown shock mode %q", s.Mode)
	}
	if s.MagnitudeSigma < 0 {
		return fmt.Errorf("shock magnitude sigma cannot be negative")
	}
	return nil
}

// LoadProcess parameterises the simulated system load: a base level plus a
// sinusoidal seasonal component and Gaussian noise, floored at zero.
type LoadProcess struct {
	BaseMW       float64 `json:"base_mw"`
	SeasonalMW   float64 `json:"seasonal_mw"` // amplitude of the seasonal swing
	PeriodSteps  int     `json:"period_steps"`
	NoiseSigmaMW float64 `json:"noise_sigma_mw"`
}

// Validate checks the load parameters.
func (l LoadProcess) Validate() error {
	if l.BaseMW <= 0 {
		return fmt.Errorf("base load must be positive")
	}
	if l.SeasonalMW < 0 || l.NoiseSigmaMW < 0 {
		return fmt.Errorf("seasonal amplitude and noise sigma cannot be negative")
	}
	if l.SeasonalMW > 0 && l.PeriodSteps <= 0 {
		return fmt.Errorf("seasonal load requires a positive period")
	}
	return nil
}

// ReserveMode selects how the reserve requirement is expressed.
type ReserveMode string

const (
	ReserveAbsolute ReserveMode = "absolute" // fixed MW
	ReserveFraction ReserveMode = "fraction" // fraction of load
)

// ReservePolicy defines the spinning-reserve requirement the dispatch must
// keep as headroom at every step.
type ReservePolicy struct {
	Mode     ReserveMode `json:"mode"`
	MW       float64     `json:"mw"`
	Fraction float64     `json:"fraction"`
}

// RequirementMW returns the reserve requirement for the given load level.
func (r ReservePolicy) RequirementMW(loadMW float64) float64 {
	if r.Mode == ReserveFraction {
		return r.Fraction * loadMW
	}
	return r.MW
}

// Validate checks the reserve policy.
func (r ReservePolicy) Validate() error {
	switch r.Mode {
	case ReserveAbsolute:
		if r.MW < 0 {
			return fmt.Errorf("reserve MW cannot be negative")
		}
	case ReserveFraction:
		if r.Fraction < 0 || r.Fraction > 1 {
			return fmt.Errorf("reserve fraction must be within [0,1]")
		}
	default:
		return fmt.Errorf("unknown reserve mode %q", r.Mode)
	}
	return nil
}

// HedgeSpec bounds the hedge the optimizer may take on one fuel. The strike
// is the contracted reference price; the optimizer chooses the volume.
type HedgeSpec struct {
	Strike    float64 `json:"strike"`     // $/MMBtu
	MaxVolume float64 `json:"max_volume"` // MMBtu, upper bound on notional
	MinVolume float64 `json:"min_volume"` // MMBtu, usually zero
}

// Validate checks the hedge bounds.
func (h HedgeSpec) Validate() error {
	if h.Strike <= 0 {
		return fmt.Errorf("hedge strike must be positive")
	}
	if h.MinVolume < 0 || h.MaxVolume < h.MinVolume {
		return fmt.Errorf("hedge volume bounds are inverted")
	}
	return nil
}

// MarketParameters collects the market side of a run: the fuel set, per-fuel
// price processes and shock overlays, the load process, the reserve policy
// and the hedge bounds. Immutable once a run has started.
type MarketParameters struct {
	Fuels   []FuelType                `json:"fuels"`
	Prices  map[FuelType]PriceProcess `json:"prices"`
	Shocks  map[FuelType]ShockSpec    `json:"shocks"`
	Load    LoadProcess               `json:"load"`
	Reserve ReservePolicy             `json:"reserve"`
	Hedges  map[FuelType]HedgeSpec    `json:"hedges"`
}

// Validate checks consistency of the whole market description. Every fuel in
// the set needs a price process; shocks and hedges are optional per fuel.
func (m MarketParameters) Validate() error {
	if len(m.Fuels) == 0 {
		return fmt.Errorf("at least one fuel type is required")
	}
	seen := make(map[FuelType]bool, len(m.Fuels))
	for _, f := range m.Fuels {
		if seen[f] {
			return fmt.Errorf("fuel %s listed twice", f)
		}
		seen[f] = true
		p, ok := m.Prices[f]
		if !ok {
			return fmt.Errorf("fuel %s has no price process", f)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("fuel %s price process: %w", f, err)
		}
		if s, ok := m.Shocks[f]; ok {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("fuel %s shock overlay: %w", f, err)
			}
		}
		if h, ok := m.Hedges[f]; ok {
			if err := h.Validate(); err != nil {
				return fmt.Errorf("fuel %s hedge bounds: %w", f, err)
			}
		}
	}
	for f := range m.Prices {
		if !seen[f] {
			return fmt.Errorf("price process for %s does not match the fuel set", f)
		}
	}
	if err := m.Load.Validate(); err != nil {
		return fmt.Errorf("load process: %w", err)
	}
	if err := m.Reserve.Validate(); err != nil {
		return fmt.Errorf("reserve policy: %w", err)
	}
	return nil
}
