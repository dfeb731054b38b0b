package optimizer

import (
	"fmt"
	"time"
)

// State tracks the co-optimizer through one solve. A problem starts in
// StateBuilt once constraints and objective are assembled; Solved,
// Infeasible and SolverFailure are terminal.
type State string

const (
	StateBuilt         State = "built"
	StateSolved        State = "solved"
	StateInfeasible    State = "infeasible"
	StateSolverFailure State = "solver_failure"
)

// Config carries the solver settings for one run. It is passed explicitly so
// independent runs can use different risk weights concurrently.
type Config struct {
	// Lambda is the risk-aversion weight on the CVaR term of the objective.
	Lambda float64 `json:"lambda"`
	// Quantile is the CVaR level, defaulting to 0.95.
	Quantile float64 `json:"quantile"`
	// Tolerance is the simplex convergence tolerance.
	Tolerance float64 `json:"tolerance"`
	// Timeout bounds the wall-clock time of one solve attempt. Zero means
	// no timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Quantile == 0 {
		c.Quantile = 0.95
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-7
	}
}

// Validate checks the solver settings.
func (c Config) Validate() error {
	if c.Lambda < 0 {
		return fmt.Errorf("risk-aversion weight cannot be negative")
	}
	if c.Quantile <= 0 || c.Quantile >= 1 {
		return fmt.Errorf("quantile must be within (0,1)")
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// Timeout returns the configured solve timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
