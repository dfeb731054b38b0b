package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine. Callers match them with
// errors.Is after unwrapping whatever context the failing component added.
var (
	// ErrInvalidInput rejects malformed unit or market parameters before
	// any computation starts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidHorizon rejects a non-positive time horizon.
	ErrInvalidHorizon = errors.New("invalid horizon")

	// ErrInvalidScenarioCount rejects a scenario count below one.
	ErrInvalidScenarioCount = errors.New("invalid scenario count")

	// ErrInfeasible reports that the optimization problem as a whole has no
	// feasible point. It is surfaced with the violated constraint set and
	// never silently relaxed.
	ErrInfeasible = errors.New("optimization infeasible")

	// ErrSolverFailure reports a numerical breakdown or timeout after the
	// configured retry was exhausted.
	ErrSolverFailure = errors.New("solver failure")
)

// InfeasibleDispatchError reports a specific decision violating a specific
// unit constraint under a specific scenario. The evaluator returns it instead
// of clamping the decision.
type InfeasibleDispatchError struct {
	UnitID     string
	Scenario   int
	Step       int
	Constraint string // "ramp", "capacity", "reserve", "min_up", "min_down"
	Limit      float64
	Value      float64
}

func (e *InfeasibleDispatchError) Error() string {
	return fmt.Sprintf("infeasible dispatch: unit %s scenario %d step %d: %s constraint violated (limit %.4f, got %.4f)",
		e.UnitID, e.Scenario, e.Step, e.Constraint, e.Limit, e.Value)
}

// IsInfeasibleDispatch reports whether err wraps an InfeasibleDispatchError.
func IsInfeasibleDispatch(err error) bool {
	var ie *InfeasibleDispatchError
	return errors.As(err, &ie)
}
