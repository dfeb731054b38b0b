// Package run orchestrates one optimization run end to end: scenario
// generation, the LP solve, parallel cost evaluation, Monte Carlo
// aggregation and result composition.
package run

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fuelhedge/core/cost"
	"github.com/kilianp07/fuelhedge/core/events"
	"github.com/kilianp07/fuelhedge/core/logger"
	"github.com/kilianp07/fuelhedge/core/metrics"
	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/montecarlo"
	"github.com/kilianp07/fuelhedge/core/optimizer"
	"github.com/kilianp07/fuelhedge/core/result"
	"github.com/kilianp07/fuelhedge/core/scenario"
	"github.com/kilianp07/fuelhedge/internal/eventbus"
)

// Params configures the stochastic side of one run.
type Params struct {
	Scenarios        int    `json:"scenarios"`
	Horizon          int    `json:"horizon"`
	Seed             uint64 `json:"seed"`
	VolatilityWindow int    `json:"volatility_window"`
}

// SetDefaults applies sane defaults.
func (p *Params) SetDefaults() {
	if p.VolatilityWindow == 0 {
		p.VolatilityWindow = 6
	}
}

// Validate checks the run parameters.
func (p Params) Validate() error {
	if p.Horizon <= 0 {
		return fmt.Errorf("%w: %d", model.ErrInvalidHorizon, p.Horizon)
	}
	if p.Scenarios < 1 {
		return fmt.Errorf("%w: %d", model.ErrInvalidScenarioCount, p.Scenarios)
	}
	return nil
}

// Engine drives the solve/evaluate/aggregate pipeline. Unit and market data
// are immutable once the engine is constructed; scenario paths are shared
// read-only across workers.
type Engine struct {
	units  []model.Unit
	market model.MarketParameters
	optCfg optimizer.Config
	params Params

	gen  *scenario.Generator
	eval *cost.Evaluator
	opt  *optimizer.CoOptimizer

	log  logger.Logger
	sink metrics.MetricsSink
	bus  *eventbus.TypedBus[events.RunEvent]
}

// New validates all inputs and assembles an Engine. A nil sink or bus
// disables the corresponding output.
func New(units []model.Unit, market model.MarketParameters, optCfg optimizer.Config, params Params, log logger.Logger, sink metrics.MetricsSink, bus *eventbus.TypedBus[events.RunEvent]) (*Engine, error) {
	params.SetDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}

	gen, err := scenario.NewGenerator(market, params.Horizon, params.Seed, log)
	if err != nil {
		return nil, err
	}
	eval, err := cost.NewEvaluator(units, market.Reserve)
	if err != nil {
		return nil, err
	}
	opt, err := optimizer.New(units, market, optCfg, log)
	if err != nil {
		return nil, err
	}
	optCfg.SetDefaults()
	return &Engine{
		units:  units,
		market: market,
		optCfg: optCfg,
		params: params,
		gen:    gen,
		eval:   eval,
		opt:    opt,
		log:    log,
		sink:   sink,
		bus:    bus,
	}, nil
}

// Run executes one full optimization run and returns the composed result.
// Failures are attributed to the stage that raised them; nothing is
// swallowed or silently degraded.
func (e *Engine) Run(ctx context.Context) (*result.RunResult, error) {
	runID := uuid.NewString()
	started := time.Now()
	e.log.Infof("run %s: %d scenarios, horizon %d, seed %d, lambda %.3f", runID, e.params.Scenarios, e.params.Horizon, e.params.Seed, e.optCfg.Lambda)

	genStart := time.Now()
	paths, err := e.gen.Generate(ctx, e.params.Scenarios)
	if err != nil {
		return nil, e.fail(runID, started, "", fmt.Errorf("scenario generator: %w", err))
	}
	e.recordBatch(runID, len(paths), time.Since(genStart))
	e.publish(runID, events.StageScenariosGenerated, nil)

	e.publish(runID, events.StageSolveStarted, nil)
	opt, err := e.opt.Solve(ctx, paths)
	if opt != nil {
		e.recordSolve(runID, opt)
	}
	if err != nil {
		state := ""
		if opt != nil {
			state = string(opt.State)
		}
		return nil, e.fail(runID, started, state, fmt.Errorf("co-optimizer: %w", err))
	}
	e.publish(runID, events.StageSolved, nil)

	outcomes, err := e.evaluateAll(ctx, paths, opt.Decision, opt.Hedge)
	if err != nil {
		return nil, e.fail(runID, started, string(opt.State), fmt.Errorf("cost evaluator: %w", err))
	}
	e.publish(runID, events.StageEvaluated, nil)

	risk, err := montecarlo.Aggregate(outcomes, montecarlo.Options{
		Quantile:      e.optCfg.Quantile,
		BootstrapSeed: e.params.Seed,
	})
	if err != nil {
		return nil, e.fail(runID, started, string(opt.State), fmt.Errorf("aggregator: %w", err))
	}
	for _, w := range risk.Warnings {
		e.log.Warnf("run %s: %s (n=%d)", runID, w, risk.SampleCount)
	}
	e.publish(runID, events.StageAggregated, nil)

	vol := montecarlo.VolatilitySummary(paths, e.market.Fuels, e.params.VolatilityWindow, runtime.GOMAXPROCS(0))

	res := result.Compose(runID, time.Now().UTC(), result.RunMeta{
		Scenarios: e.params.Scenarios,
		Horizon:   e.params.Horizon,
		Seed:      e.params.Seed,
		Lambda:    e.optCfg.Lambda,
		Quantile:  e.optCfg.Quantile,
	}, opt, outcomes, risk, vol)
	e.publish(runID, events.StageComposed, nil)

	if err := e.sink.RecordRun(metrics.RunRecord{
		RunID:        runID,
		State:        res.State,
		Scenarios:    e.params.Scenarios,
		Horizon:      e.params.Horizon,
		Lambda:       e.optCfg.Lambda,
		ExpectedCost: risk.ExpectedCost,
		CVaR:         risk.CVaR,
		StdError:     risk.StdError,
		Duration:     time.Since(started),
		Time:         time.Now(),
	}); err != nil {
		e.log.Errorf("run %s: record run metrics: %v", runID, err)
	}
	e.log.Infof("run %s done in %s: expected cost %.2f, cvar %.2f (se %.2f)", runID, time.Since(started), risk.ExpectedCost, risk.CVaR, risk.StdError)
	return res, nil
}

// evaluateAll evaluates the accepted decision against every scenario across
// a worker pool. Outcomes are placed by scenario index so aggregation sees
// them in generation order even though it does not require it.
func (e *Engine) evaluateAll(ctx context.Context, paths []model.ScenarioPath, decision model.DispatchDecision, hedge model.HedgeBook) ([]model.CostOutcome, error) {
	outcomes := make([]model.CostOutcome, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range paths {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			out, err := e.eval.Evaluate(paths[i], decision, hedge)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Engine) fail(runID string, started time.Time, state string, err error) error {
	if state == "" {
		state = "failed"
	}
	e.publish(runID, events.StageFailed, err)
	if rerr := e.sink.RecordRun(metrics.RunRecord{
		RunID:     runID,
		State:     state,
		Scenarios: e.params.Scenarios,
		Horizon:   e.params.Horizon,
		Lambda:    e.optCfg.Lambda,
		Duration:  time.Since(started),
		Time:      time.Now(),
	}); rerr != nil {
		e.log.Errorf("run %s: record run metrics: %v", runID, rerr)
	}
	e.log.Errorf("run %s failed: %v", runID, err)
	return fmt.Errorf("run %s: %w", runID, err)
}

func (e *Engine) publish(runID string, stage events.Stage, err error) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.RunEvent{RunID: runID, Stage: stage, Err: err, Time: time.Now()})
}

func (e *Engine) recordBatch(runID string, count int, d time.Duration) {
	if err := e.sink.RecordScenarioBatch(metrics.ScenarioBatch{
		RunID:    runID,
		Count:    count,
		Horizon:  e.params.Horizon,
		Duration: d,
		Time:     time.Now(),
	}); err != nil {
		e.log.Errorf("run %s: record scenario batch: %v", runID, err)
	}
}

func (e *Engine) recordSolve(runID string, opt *optimizer.Result) {
	if err := e.sink.RecordSolve(metrics.SolveRecord{
		RunID:    runID,
		State:    string(opt.State),
		Retried:  opt.Retried,
		Duration: opt.SolveTime,
		Time:     time.Now(),
	}); err != nil {
		e.log.Errorf("run %s: record solve metrics: %v", runID, err)
	}
}
