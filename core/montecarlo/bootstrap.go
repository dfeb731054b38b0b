package montecarlo

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// bootstrapCVaRStdError estimates the standard error of the tail-mean CVaR
// by resampling the cost vector with replacement. The seed fixes the
// resample sequence so the convergence diagnostic is reproducible.
func bootstrapCVaRStdError(costs []float64, opts Options) float64 {
	n := len(costs)
	k := tailSize(opts.Quantile, n)

	src := rand.New(rand.NewPCG(opts.BootstrapSeed, 0x5eed))
	estimates := make([]float64, opts.BootstrapSamples)
	resample := make([]float64, n)
	for b := range estimates {
		for i := range resample {
			resample[i] = costs[src.IntN(n)]
		}
		sort.Float64s(resample)
		estimates[b] = stat.Mean(resample[n-k:], nil)
	}
	return stat.StdDev(estimates, nil)
}
