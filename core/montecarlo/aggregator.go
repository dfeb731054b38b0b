package montecarlo

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fuelhedge/core/model"
)

// Options configures one aggregation. The zero value is usable after
// SetDefaults.
type Options struct {
	// Quantile is the CVaR level, matching the optimizer's.
	Quantile float64
	// Workers bounds the parallel reduction; zero means GOMAXPROCS.
	Workers int
	// BootstrapSamples sets the resample count for the CVaR standard error.
	BootstrapSamples int
	// BootstrapSeed makes the standard-error estimate reproducible.
	BootstrapSeed uint64
}

// SetDefaults applies sane defaults.
func (o *Options) SetDefaults() {
	if o.Quantile == 0 {
		o.Quantile = 0.95
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.BootstrapSamples == 0 {
		o.BootstrapSamples = 200
	}
}

// Aggregate reduces the cost outcomes of one candidate decision into a
// RiskSummary. It must only be called once every scenario of the decision
// has been evaluated.
func Aggregate(outcomes []model.CostOutcome, opts Options) (model.RiskSummary, error) {
	costs := make([]float64, len(outcomes))
	for i, o := range outcomes {
		costs[i] = o.Total
	}
	return AggregateCosts(costs, opts)
}

// AggregateCosts reduces raw per-scenario costs. The CVaR is the mean of the
// worst ceil((1−q)·N) outcomes, the sorted-tail definition consistent with
// the optimizer's linearization, so reported risk matches optimized risk.
func AggregateCosts(costs []float64, opts Options) (model.RiskSummary, error) {
	opts.SetDefaults()
	n := len(costs)
	if n == 0 {
		return model.RiskSummary{}, fmt.Errorf("%w: no outcomes to aggregate", model.ErrInvalidScenarioCount)
	}

	summary := model.RiskSummary{
		Quantile:    opts.Quantile,
		SampleCount: n,
	}
	summary.ExpectedCost = parallelMean(costs, opts.Workers)

	k := tailSize(opts.Quantile, n)
	summary.TailCount = k

	sorted := make([]float64, n)
	copy(sorted, costs)
	sort.Float64s(sorted)
	tail := sorted[n-k:]
	summary.CVaR = stat.Mean(tail, nil)

	if n < model.MinScenariosForCVaR {
		summary.Warnings = append(summary.Warnings, model.WarnInsufficientScenarios)
	} else {
		summary.StdError = bootstrapCVaRStdError(costs, opts)
	}
	return summary, nil
}

// tailSize is the number of outcomes in the CVaR tail, ⌈(1−q)·n⌉, matching
// the 1/((1−q)·n) tail weight of the optimizer's linearization. The epsilon
// guards against the float64 representation of 1−q pushing an exactly
// integral product onto the next integer (0.05·100 evaluates to slightly
// above 5).
func tailSize(quantile float64, n int) int {
	k := int(math.Ceil((1-quantile)*float64(n) - 1e-9))
	if k < 1 {
		k = 1
	}
	return k
}

// parallelMean shards the summation across workers. Floating-point order
// differs from a serial loop; callers tolerate that within the declared
// numeric tolerance.
func parallelMean(costs []float64, workers int) float64 {
	n := len(costs)
	if workers < 2 || n < 2048 {
		return stat.Mean(costs, nil)
	}
	if workers > n {
		workers = n
	}
	partial := make([]float64, workers)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			partial[w] = floats.Sum(costs[lo:hi])
		}(w, lo, hi)
	}
	wg.Wait()
	return floats.Sum(partial) / float64(n)
}
