package scenario

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/fuelhedge/core/model"
)

// pathRand bundles the distributions drawn while simulating one scenario.
// Every scenario owns its own source so generation is bit-identical for a
// given (seed, index) pair regardless of worker scheduling.
type pathRand struct {
	norm distuv.Normal
	uni  distuv.Uniform
}

func newPathRand(seed, index uint64) *pathRand {
	src := rand.NewPCG(seed, splitmix(seed^index))
	return &pathRand{
		norm: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uni:  distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// splitmix mixes a 64-bit value so neighbouring scenario indices produce
// uncorrelated sub-seeds.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// simulatePrice evolves one fuel price over the horizon. The process is
// mean-reverting in log space; a Bernoulli-triggered lognormal jump overlay
// is applied on top of the reverted level at each step.
func simulatePrice(p model.PriceProcess, shock model.ShockSpec, horizon int, r *pathRand) []float64 {
	series := make([]float64, horizon)
	x := math.Log(p.Initial)
	target := math.Log(p.LongRun)
	for t := 0; t < horizon; t++ {
		if t > 0 {
			x += p.Reversion*(target-x) + p.Volatility*r.norm.Rand()
		}
		price := math.Exp(x)
		if shock.Probability > 0 && r.uni.Rand() < shock.Probability {
			mag := math.Exp(shock.MagnitudeMu + shock.MagnitudeSigma*r.norm.Rand())
			switch shock.Mode {
			case model.ShockMultiplicative:
				price *= mag
			case model.ShockAdditive:
				price += mag
			}
		}
		series[t] = price
	}
	return series
}

// simulateLoad evolves the system load: base plus sinusoidal seasonality and
// Gaussian noise, floored at zero.
func simulateLoad(l model.LoadProcess, horizon int, r *pathRand) []float64 {
	series := make([]float64, horizon)
	for t := 0; t < horizon; t++ {
		load := l.BaseMW
		if l.SeasonalMW > 0 {
			load += l.SeasonalMW * math.Sin(2*math.Pi*float64(t)/float64(l.PeriodSteps))
		}
		if l.NoiseSigmaMW > 0 {
			load += l.NoiseSigmaMW * r.norm.Rand()
		}
		if load < 0 {
			load = 0
		}
		series[t] = load
	}
	return series
}
