package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/fuelhedge/core/cost"
	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/montecarlo"
)

func singleUnit() []model.Unit {
	return []model.Unit{{
		ID:       "gt1",
		Fuel:     model.FuelLNG,
		HeatRate: model.LinearHeatRate(7.5),
		MaxMW:    100,
		RampMW:   100,
	}}
}

func hedgedMarket() model.MarketParameters {
	return model.MarketParameters{
		Fuels: []model.FuelType{model.FuelLNG},
		Prices: map[model.FuelType]model.PriceProcess{
			model.FuelLNG: {Initial: 9, LongRun: 10, Reversion: 0.2, Volatility: 0.05},
		},
		Load:    model.LoadProcess{BaseMW: 50},
		Reserve: model.ReservePolicy{Mode: model.ReserveAbsolute, MW: 10},
		Hedges: map[model.FuelType]model.HedgeSpec{
			model.FuelLNG: {Strike: 9, MaxVolume: 1500},
		},
	}
}

// spreadPaths builds n deterministic scenarios with constant load and a
// per-scenario flat LNG price of 8 + 0.2·s.
func spreadPaths(n, horizon int, load float64) []model.ScenarioPath {
	paths := make([]model.ScenarioPath, n)
	for s := 0; s < n; s++ {
		price := 8 + 0.2*float64(s)
		loads := make([]float64, horizon)
		prices := make([]float64, horizon)
		for t := 0; t < horizon; t++ {
			loads[t] = load
			prices[t] = price
		}
		paths[s] = model.ScenarioPath{
			Index:  s,
			LoadMW: loads,
			Prices: map[model.FuelType][]float64{model.FuelLNG: prices},
		}
	}
	return paths
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, hedgedMarket(), Config{Lambda: 1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = New(singleUnit(), hedgedMarket(), Config{Lambda: -1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	bad := hedgedMarket()
	bad.Prices = nil
	_, err = New(singleUnit(), bad, Config{Lambda: 1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSolveBasic(t *testing.T) {
	units := singleUnit()
	market := hedgedMarket()
	opt, err := New(units, market, Config{Lambda: 1}, nil)
	require.NoError(t, err)

	paths := spreadPaths(20, 4, 50)
	res, err := opt.Solve(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, StateSolved, res.State)

	require.NoError(t, res.Decision.Validate())
	assert.Equal(t, 4, res.Decision.Horizon())
	for tstep := 0; tstep < 4; tstep++ {
		total := res.Decision.TotalAt(tstep)
		assert.GreaterOrEqual(t, total, 50-1e-6, "demand at step %d", tstep)
		assert.LessOrEqual(t, total, 90+1e-6, "reserve headroom at step %d", tstep)
	}

	h := res.Hedge[model.FuelLNG]
	assert.GreaterOrEqual(t, h.VolumeMMBtu, -1e-9)
	assert.LessOrEqual(t, h.VolumeMMBtu, 1500+1e-6)
	assert.Equal(t, 9.0, h.Strike)

	assert.GreaterOrEqual(t, res.CVaR, res.ExpectedCost-1e-6)
	assert.InDelta(t, res.ExpectedCost+res.CVaR, res.Objective, 1e-6)
	assert.Len(t, res.ScenarioCosts, 20)
}

// TestSolveHedgeReducesRisk checks that the co-optimizer actually uses the
// hedge: with prices averaging above the strike, the full volume is optimal
// and flattens the cost distribution completely.
func TestSolveHedgeReducesRisk(t *testing.T) {
	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)

	res, err := opt.Solve(context.Background(), spreadPaths(20, 4, 50))
	require.NoError(t, err)

	// Burning 50 MW over 4 steps at 7.5 MMBtu/MWh consumes exactly 1500
	// MMBtu, so the full hedge removes all price exposure.
	assert.InDelta(t, 1500, res.Hedge[model.FuelLNG].VolumeMMBtu, 1e-4)
	assert.InDelta(t, res.ExpectedCost, res.CVaR, 1e-4)
	assert.InDelta(t, 13500, res.ExpectedCost, 1e-3)
}

// TestSolveFlatScenarios: identical scenarios collapse the CVaR rows into
// copies of each other, the most degenerate basis the builder can produce;
// the solve must still terminate Solved.
func TestSolveFlatScenarios(t *testing.T) {
	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)

	paths := spreadPaths(10, 4, 50)
	for s := range paths {
		prices := paths[s].Prices[model.FuelLNG]
		for i := range prices {
			prices[i] = 9
		}
	}

	res, err := opt.Solve(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, StateSolved, res.State)
	assert.InDelta(t, 13500, res.ExpectedCost, 1e-3)
	assert.InDelta(t, res.ExpectedCost, res.CVaR, 1e-4)
}

// TestCVaRConsistency verifies that the LP's linearized CVaR matches the
// empirical sorted-tail CVaR of the evaluated outcomes on the same scenarios.
func TestCVaRConsistency(t *testing.T) {
	units := singleUnit()
	market := hedgedMarket()
	market.Hedges[model.FuelLNG] = model.HedgeSpec{Strike: 9, MaxVolume: 700}

	opt, err := New(units, market, Config{Lambda: 0.5}, nil)
	require.NoError(t, err)

	paths := spreadPaths(40, 4, 50)
	res, err := opt.Solve(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, StateSolved, res.State)

	ev, err := cost.NewEvaluator(units, market.Reserve)
	require.NoError(t, err)
	totals := make([]float64, len(paths))
	for i, p := range paths {
		out, err := ev.Evaluate(p, res.Decision, res.Hedge)
		require.NoError(t, err)
		totals[i] = out.Total
		assert.InDelta(t, res.ScenarioCosts[i], out.Total, 1e-6, "scenario %d", i)
	}

	risk, err := montecarlo.AggregateCosts(totals, montecarlo.Options{Quantile: 0.95})
	require.NoError(t, err)
	assert.InDelta(t, res.CVaR, risk.CVaR, 1e-6)
	assert.InDelta(t, res.ExpectedCost, risk.ExpectedCost, 1e-6)
}

// TestLambdaMonotonicity: a more risk-averse objective never yields a
// solution with higher CVaR. The strike sits above the mean price, so the
// risk-neutral optimum carries no hedge while the risk-averse one pays for
// tail protection.
func TestLambdaMonotonicity(t *testing.T) {
	units := singleUnit()
	market := hedgedMarket()
	market.Hedges[model.FuelLNG] = model.HedgeSpec{Strike: 10.5, MaxVolume: 1500}
	paths := spreadPaths(20, 4, 50)

	solve := func(lambda float64) *Result {
		opt, err := New(units, market, Config{Lambda: lambda}, nil)
		require.NoError(t, err)
		res, err := opt.Solve(context.Background(), paths)
		require.NoError(t, err)
		require.Equal(t, StateSolved, res.State)
		return res
	}

	neutral := solve(0)
	averse := solve(5)

	assert.InDelta(t, 0, neutral.Hedge[model.FuelLNG].VolumeMMBtu, 1e-6)
	assert.Greater(t, averse.Hedge[model.FuelLNG].VolumeMMBtu, 1.0)
	assert.LessOrEqual(t, averse.CVaR, neutral.CVaR+1e-9)
	assert.GreaterOrEqual(t, averse.ExpectedCost, neutral.ExpectedCost-1e-9)
}

func TestSolveReserveInfeasible(t *testing.T) {
	market := hedgedMarket()
	market.Reserve = model.ReservePolicy{Mode: model.ReserveAbsolute, MW: 200}
	opt, err := New(singleUnit(), market, Config{Lambda: 1}, nil)
	require.NoError(t, err)

	res, err := opt.Solve(context.Background(), spreadPaths(5, 3, 50))
	require.ErrorIs(t, err, model.ErrInfeasible)
	assert.Equal(t, StateInfeasible, res.State)
}

func TestSolveStaticInfeasible(t *testing.T) {
	market := hedgedMarket()
	market.Load = model.LoadProcess{BaseMW: 500}
	opt, err := New(singleUnit(), market, Config{Lambda: 1}, nil)
	require.NoError(t, err)

	res, err := opt.Solve(context.Background(), spreadPaths(5, 3, 500))
	require.ErrorIs(t, err, model.ErrInfeasible)
	require.NotNil(t, res)
	assert.Equal(t, StateInfeasible, res.State)
}

func TestSolveLPInfeasible(t *testing.T) {
	defer func() { lpSolve = solveStandard }()
	lpSolve = func([]float64, *mat.Dense, []float64, float64) ([]float64, error) {
		return nil, lp.ErrInfeasible
	}

	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)
	res, err := opt.Solve(context.Background(), spreadPaths(5, 3, 50))
	require.ErrorIs(t, err, model.ErrInfeasible)
	assert.Equal(t, StateInfeasible, res.State)
	assert.False(t, res.Retried, "infeasibility must not be retried")
}

func TestSolveRetryThenFail(t *testing.T) {
	defer func() { lpSolve = solveStandard }()
	calls := 0
	lpSolve = func([]float64, *mat.Dense, []float64, float64) ([]float64, error) {
		calls++
		return nil, errors.New("numerical breakdown")
	}

	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)
	res, err := opt.Solve(context.Background(), spreadPaths(5, 3, 50))
	require.ErrorIs(t, err, model.ErrSolverFailure)
	assert.Equal(t, StateSolverFailure, res.State)
	assert.True(t, res.Retried)
	assert.Equal(t, 2, calls)
}

func TestSolveRetryThenSucceed(t *testing.T) {
	defer func() { lpSolve = solveStandard }()
	calls := 0
	lpSolve = func(c []float64, g *mat.Dense, h []float64, tol float64) ([]float64, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient breakdown")
		}
		return solveStandard(c, g, h, tol)
	}

	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)
	res, err := opt.Solve(context.Background(), spreadPaths(20, 4, 50))
	require.NoError(t, err)
	assert.Equal(t, StateSolved, res.State)
	assert.True(t, res.Retried)
	assert.Equal(t, 2, calls)
}

func TestSolveTimeout(t *testing.T) {
	defer func() { lpSolve = solveStandard }()
	release := make(chan struct{})
	defer close(release)
	lpSolve = func([]float64, *mat.Dense, []float64, float64) ([]float64, error) {
		<-release
		return nil, errors.New("released")
	}

	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1, TimeoutSeconds: 1}, nil)
	require.NoError(t, err)

	res, err := opt.Solve(context.Background(), spreadPaths(5, 3, 50))
	require.ErrorIs(t, err, model.ErrSolverFailure)
	assert.Equal(t, StateSolverFailure, res.State)
	assert.True(t, res.Retried, "timeout is retried once before failing")
}

func TestSolveNoScenarios(t *testing.T) {
	opt, err := New(singleUnit(), hedgedMarket(), Config{Lambda: 1}, nil)
	require.NoError(t, err)
	_, err = opt.Solve(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrInvalidScenarioCount)
}

func TestBuildProblemLayout(t *testing.T) {
	units := singleUnit()
	market := hedgedMarket()
	cfg := Config{Lambda: 1}
	cfg.SetDefaults()

	paths := spreadPaths(10, 4, 50)
	prob, err := buildProblem(units, market, paths, cfg)
	require.NoError(t, err)

	assert.Equal(t, StateBuilt, prob.state)
	assert.Equal(t, 4, prob.offH)
	assert.Equal(t, 5, prob.offEtaPos)
	assert.Equal(t, 6, prob.offEtaNeg)
	assert.Equal(t, 7, prob.offZ)
	assert.Equal(t, 17, prob.nstruct)

	// Zero minimum output and zero minimum hedge volume stay implicit, so
	// no rows exist for them.
	wantRows := 4 + 2*3 + 2*4 + 1 + 10
	assert.Len(t, prob.b, wantRows)
	rows, cols := prob.a.Dims()
	assert.Equal(t, wantRows, rows)
	assert.Equal(t, prob.nstruct+wantRows, cols)
	assert.Equal(t, prob.nvar, cols)
	assert.ElementsMatch(t, []constraintKind{
		conCapacity, conRamp, conDemand, conReserve, conHedgeBound, conCVaRLink,
	}, prob.kindSet())

	// Each row carries exactly one slack column, giving A full row rank.
	for r := 0; r < rows; r++ {
		assert.Equal(t, 1.0, prob.a.At(r, prob.nstruct+r), "slack of row %d", r)
	}
}
