package model

import "fmt"

// HeatRateCurve maps an output level in MW to the fuel burned to sustain it,
// in MMBtu per step. The curve is polynomial in the output level:
// coeffs[0] + coeffs[1]*p + coeffs[2]*p^2 + ...
// A purely linear curve (coeffs[0]==0, len==2) makes the unit's fuel cost
// exactly representable in the dispatch LP.
type HeatRateCurve struct {
	Coeffs []float64 `json:"coeffs"`
}

// LinearHeatRate returns a curve burning rate MMBtu per MWh of output.
func LinearHeatRate(rate float64) HeatRateCurve {
	return HeatRateCurve{Coeffs: []float64{0, rate}}
}

// At evaluates the curve at the given output level. Output at zero burns
// nothing regardless of the constant term: an offline unit consumes no fuel.
func (c HeatRateCurve) At(outputMW float64) float64 {
	if outputMW <= 0 {
		return 0
	}
	var sum, pow float64
	pow = 1
	for _, coef := range c.Coeffs {
		sum += coef * pow
		pow *= outputMW
	}
	return sum
}

// MarginalAt evaluates the derivative of the curve at the given output level.
// The LP uses this as the constant marginal fuel rate of the unit.
func (c HeatRateCurve) MarginalAt(outputMW float64) float64 {
	var sum, pow float64
	pow = 1
	for i := 1; i < len(c.Coeffs); i++ {
		sum += float64(i) * c.Coeffs[i] * pow
		pow *= outputMW
	}
	return sum
}

// Validate checks that the curve is usable and non-decreasing on [0, maxMW].
func (c HeatRateCurve) Validate(maxMW float64) error {
	if len(c.Coeffs) < 2 {
		return fmt.Errorf("heat-rate curve needs at least a linear term")
	}
	if c.MarginalAt(0) < 0 || c.MarginalAt(maxMW) < 0 {
		return fmt.Errorf("heat-rate curve must be non-decreasing over the output range")
	}
	return nil
}

// Unit describes a single generating unit. A Unit is immutable once a run
// has started.
type Unit struct {
	ID           string        `json:"id"`
	Fuel         FuelType      `json:"fuel"`
	HeatRate     HeatRateCurve `json:"heat_rate"`
	MinMW        float64       `json:"min_mw"`
	MaxMW        float64       `json:"max_mw"`
	RampMW       float64       `json:"ramp_mw"` // max output change between consecutive steps
	MinUpSteps   int           `json:"min_up_steps"`
	MinDownSteps int           `json:"min_down_steps"`
	StartCost    float64       `json:"start_cost"`
}

// Validate checks that the unit parameters are sound.
func (u Unit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("unit id is required")
	}
	if u.MaxMW <= 0 {
		return fmt.Errorf("unit %s: max output must be positive", u.ID)
	}
	if u.MinMW < 0 || u.MinMW > u.MaxMW {
		return fmt.Errorf("unit %s: min output must be within [0, max]", u.ID)
	}
	if u.RampMW <= 0 {
		return fmt.Errorf("unit %s: ramp limit must be positive", u.ID)
	}
	if u.StartCost < 0 {
		return fmt.Errorf("unit %s: start cost cannot be negative", u.ID)
	}
	if err := u.HeatRate.Validate(u.MaxMW); err != nil {
		return fmt.Errorf("unit %s: %w", u.ID, err)
	}
	return nil
}
