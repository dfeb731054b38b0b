package montecarlo

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fuelhedge/core/model"
)

// RollingVolatility computes the trailing standard deviation of log returns
// over the given window. Entries before a full window are NaN.
func RollingVolatility(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if window < 2 || len(series) < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	returns := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns[i-1] = math.Log(series[i] / series[i-1])
	}
	for i := range out {
		if i < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(returns[i-window:i], nil)
	}
	return out
}

// VolatilitySummary reduces per-scenario rolling volatilities into a single
// mean realized volatility per fuel. The per-scenario pass is embarrassingly
// parallel; partial sums are merged under the lock.
func VolatilitySummary(paths []model.ScenarioPath, fuels []model.FuelType, window, workers int) map[model.FuelType]float64 {
	if workers < 1 {
		workers = 1
	}
	sums := make(map[model.FuelType]float64, len(fuels))
	counts := make(map[model.FuelType]int, len(fuels))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for _, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(path model.ScenarioPath) {
			defer wg.Done()
			defer func() { <-sem }()
			local := make(map[model.FuelType]float64, len(fuels))
			localN := make(map[model.FuelType]int, len(fuels))
			for _, f := range fuels {
				for _, v := range RollingVolatility(path.Prices[f], window) {
					if !math.IsNaN(v) {
						local[f] += v
						localN[f]++
					}
				}
			}
			mu.Lock()
			for f, v := range local {
				sums[f] += v
				counts[f] += localN[f]
			}
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	out := make(map[model.FuelType]float64, len(fuels))
	for _, f := range fuels {
		if counts[f] > 0 {
			out[f] = sums[f] / float64(counts[f])
		}
	}
	return out
}
