package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/fuelhedge/core/logger"
	"github.com/kilianp07/fuelhedge/core/model"
)

// CoOptimizer selects dispatch and hedge notionals minimizing
// E[cost] + λ·CVaR_q[cost] across a scenario set, subject to ramp, capacity,
// demand, reserve and hedge-volume constraints. The solver instance is owned
// by one run at a time.
type CoOptimizer struct {
	cfg    Config
	units  []model.Unit
	market model.MarketParameters
	log    logger.Logger
}

// Result carries the terminal state of one solve and, when Solved, the
// accepted decision with the LP's own risk figures.
type Result struct {
	State State

	Decision model.DispatchDecision
	Hedge    model.HedgeBook

	// Objective is the optimal value of E[cost] + λ·CVaR.
	Objective float64
	// Eta is the CVaR threshold variable at the optimum (the q-VaR).
	Eta float64
	// CVaR is the linearized CVaR implied by the LP variables:
	// eta + (1/((1−q)·N))·Σ z_s.
	CVaR float64
	// ExpectedCost is the mean of the per-scenario LP costs.
	ExpectedCost float64
	// ScenarioCosts are the per-scenario linear costs of the solution, in
	// scenario index order.
	ScenarioCosts []float64

	SolveTime time.Duration
	Retried   bool
}

// New validates inputs and returns a CoOptimizer.
func New(units []model.Unit, market model.MarketParameters, cfg Config, log logger.Logger) (*CoOptimizer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no units", model.ErrInvalidInput)
	}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
	}
	if err := market.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &CoOptimizer{cfg: cfg, units: units, market: market, log: log}, nil
}

// lpSolve points at the simplex call so tests can simulate solver failures.
var lpSolve = solveStandard

// solveStandard runs the simplex on the already-standard-form program
// min c·x, A·x = b, x ≥ 0. The problem carries its own slack columns and
// splits only the sign-free eta, so no general free-variable conversion is
// involved.
//
// Degenerate optima are resolved by the simplex's Bland-rule pivoting; that
// native tie-break is accepted as-is and is deterministic for a given input.
func solveStandard(c []float64, a *mat.Dense, b []float64, tol float64) ([]float64, error) {
	_, sol, err := lp.Simplex(c, a, b, tol, nil)
	if err != nil {
		return nil, err
	}
	return sol, nil
}

// Solve builds the LP for the scenario set and drives it to a terminal
// state. A solver error or wall-clock timeout is retried once with a
// tightened tolerance before surfacing as SolverFailure. Infeasibility is
// reported, never relaxed.
func (o *CoOptimizer) Solve(ctx context.Context, paths []model.ScenarioPath) (*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", model.ErrInvalidScenarioCount)
	}
	for _, p := range paths {
		if err := p.Validate(o.market.Fuels); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
	}

	prob, err := buildProblem(o.units, o.market, paths, o.cfg)
	if err != nil {
		if errors.Is(err, model.ErrInfeasible) {
			return &Result{State: StateInfeasible}, err
		}
		return nil, err
	}
	o.log.Debugw("problem built", map[string]any{
		"variables":   prob.nvar,
		"constraints": len(prob.b),
		"scenarios":   prob.n,
		"horizon":     prob.horizon,
	})

	start := time.Now()
	sol, retried, err := o.attempt(ctx, prob)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			prob.state = StateInfeasible
			return &Result{State: StateInfeasible, SolveTime: elapsed, Retried: retried},
				fmt.Errorf("%w: constraints jointly unsatisfiable (present: %v)", model.ErrInfeasible, prob.kindSet())
		}
		prob.state = StateSolverFailure
		return &Result{State: StateSolverFailure, SolveTime: elapsed, Retried: retried},
			fmt.Errorf("%w: %v", model.ErrSolverFailure, err)
	}
	prob.state = StateSolved

	res := o.extract(prob, sol)
	res.SolveTime = elapsed
	res.Retried = retried
	o.log.Infof("solved in %s: objective %.2f, expected cost %.2f, cvar %.2f", elapsed, res.Objective, res.ExpectedCost, res.CVaR)
	return res, nil
}

// attempt runs the solver under the configured timeout, once, then once more
// with a tenfold tightened tolerance on failure. Infeasibility is terminal
// on the first attempt: tightening cannot make an infeasible problem
// feasible.
func (o *CoOptimizer) attempt(ctx context.Context, prob *problem) (sol []float64, retried bool, err error) {
	sol, err = o.solveOnce(ctx, prob, o.cfg.Tolerance)
	if err == nil || errors.Is(err, lp.ErrInfeasible) {
		return sol, false, err
	}
	o.log.Warnf("solver attempt failed (%v), retrying with tightened tolerance", err)
	sol, err = o.solveOnce(ctx, prob, o.cfg.Tolerance/10)
	return sol, true, err
}

var errSolveTimeout = errors.New("solve timed out")

func (o *CoOptimizer) solveOnce(ctx context.Context, prob *problem, tol float64) ([]float64, error) {
	if o.cfg.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout())
		defer cancel()
	}

	type outcome struct {
		sol []float64
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sol, err := lpSolve(prob.c, prob.a, prob.b, tol)
		done <- outcome{sol: sol, err: err}
	}()

	select {
	case out := <-done:
		return out.sol, out.err
	case <-ctx.Done():
		// The simplex call cannot be interrupted; the goroutine drains into
		// the buffered channel when it finishes.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errSolveTimeout
		}
		return nil, ctx.Err()
	}
}

// extract maps the solution vector back onto the domain types and derives
// the LP's own risk figures.
func (o *CoOptimizer) extract(prob *problem, sol []float64) *Result {
	decision := model.NewDispatchDecision(o.units, prob.horizon)
	for i := range o.units {
		for t := 0; t < prob.horizon; t++ {
			out := sol[i*prob.horizon+t]
			// Tiny negative values are simplex round-off.
			if out < 0 && out > -1e-9 {
				out = 0
			}
			decision.OutputMW[i][t] = out
		}
	}

	hedge := make(model.HedgeBook, len(prob.hedged))
	for j, f := range prob.hedged {
		vol := sol[prob.offH+j]
		if vol < 0 && vol > -1e-9 {
			vol = 0
		}
		hedge[f] = model.HedgeNotional{Fuel: f, VolumeMMBtu: vol, Strike: o.market.Hedges[f].Strike}
	}

	res := &Result{
		State:         StateSolved,
		Decision:      decision,
		Hedge:         hedge,
		Eta:           sol[prob.offEtaPos] - sol[prob.offEtaNeg],
		ScenarioCosts: make([]float64, prob.n),
	}

	var zSum float64
	for s := 0; s < prob.n; s++ {
		var cost float64
		for i, v := range prob.scenCost[s] {
			cost += v * sol[i]
		}
		res.ScenarioCosts[s] = cost
		res.ExpectedCost += cost
		zSum += math.Max(cost-res.Eta, 0)
	}
	res.ExpectedCost /= float64(prob.n)
	res.CVaR = res.Eta + zSum/((1-o.cfg.Quantile)*float64(prob.n))
	res.Objective = res.ExpectedCost + o.cfg.Lambda*res.CVaR
	return res
}
