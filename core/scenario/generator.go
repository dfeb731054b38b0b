package scenario

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fuelhedge/core/logger"
	"github.com/kilianp07/fuelhedge/core/model"
)

// Generator produces independent joint paths of load and fuel prices. It is
// a pure function of its parameters and seed: the same seed yields a
// bit-identical scenario set, which backtesting and audit rely on.
type Generator struct {
	Params  model.MarketParameters
	Horizon int
	Seed    uint64
	Workers int

	Log logger.Logger
}

// NewGenerator validates the market parameters and returns a Generator.
func NewGenerator(params model.MarketParameters, horizon int, seed uint64, log logger.Logger) (*Generator, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon %d", model.ErrInvalidHorizon, horizon)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Generator{Params: params, Horizon: horizon, Seed: seed, Workers: runtime.GOMAXPROCS(0), Log: log}, nil
}

// Generate returns n scenario paths ordered by index. Paths are simulated in
// parallel; each scenario derives its own random source from (seed, index),
// so result placement by index keeps the seed-to-path mapping stable.
func (g *Generator) Generate(ctx context.Context, n int) ([]model.ScenarioPath, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidScenarioCount, n)
	}

	paths := make([]model.ScenarioPath, n)
	eg, ctx := errgroup.WithContext(ctx)
	workers := g.Workers
	if workers < 1 {
		workers = 1
	}
	eg.SetLimit(workers)

	for i := 0; i < n; i++ {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			paths[i] = g.simulate(i)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("scenario generation aborted: %w", err)
	}
	g.Log.Debugw("scenario batch generated", map[string]any{
		"scenarios": n,
		"horizon":   g.Horizon,
		"seed":      g.Seed,
	})
	return paths, nil
}

// simulate builds a single path. Fuel series are drawn in fuel-set order so
// the draw sequence for a scenario is fixed.
func (g *Generator) simulate(index int) model.ScenarioPath {
	r := newPathRand(g.Seed, uint64(index))
	path := model.ScenarioPath{
		Index:  index,
		Seed:   splitmix(g.Seed ^ uint64(index)),
		LoadMW: simulateLoad(g.Params.Load, g.Horizon, r),
		Prices: make(map[model.FuelType][]float64, len(g.Params.Fuels)),
	}
	for _, f := range g.Params.Fuels {
		path.Prices[f] = simulatePrice(g.Params.Prices[f], g.Params.Shocks[f], g.Horizon, r)
	}
	return path
}

// MaxLoad returns, per step, the maximum load across the scenario set. The
// optimizer serves this envelope so one dispatch covers every path.
func MaxLoad(paths []model.ScenarioPath) []float64 {
	if len(paths) == 0 {
		return nil
	}
	out := make([]float64, paths[0].Horizon())
	for _, p := range paths {
		for t, v := range p.LoadMW {
			if v > out[t] {
				out[t] = v
			}
		}
	}
	return out
}
