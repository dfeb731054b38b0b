package optimizer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fuelhedge/core/model"
	"github.com/kilianp07/fuelhedge/core/scenario"
)

// constraintKind is the closed set of constraint families the LP is built
// from. Every row of the constraint matrix is tagged with its kind so an
// infeasible problem can name what it violates.
type constraintKind string

const (
	conCapacity   constraintKind = "capacity"
	conRamp       constraintKind = "ramp"
	conDemand     constraintKind = "demand"
	conReserve    constraintKind = "reserve"
	conHedgeBound constraintKind = "hedge_bound"
	conCVaRLink   constraintKind = "cvar_link"
)

// problem is the assembled Rockafellar–Uryasev LP in simplex standard form,
// min c·x subject to A·x = b, x ≥ 0.
//
// Structural variable layout: [p_{u,t} (units×steps, row-major) | h_f
// (hedged fuels) | eta+ | eta− | z_s (scenarios)]. Every inequality row
// carries its own slack column after the structural block, so A has full row
// rank by construction. The CVaR threshold eta is the only sign-free
// quantity and enters as the difference eta+ − eta−; p, h and z are
// non-negative natively, which keeps the basis far better conditioned than
// a general ± split of every column. The objective is
//
//	(1/N)·Σ_s cost_s + λ·(eta + (1/((1−q)·N))·Σ_s z_s)
//
// with cost_s linear in p and h through the units' marginal heat rates and
// the scenario's prices.
type problem struct {
	state State

	units   []model.Unit
	hedged  []model.FuelType
	horizon int
	n       int // scenario count

	c     []float64  // objective, length nvar
	a     *mat.Dense // equality matrix, A·x = b
	b     []float64
	kinds []constraintKind // per row of a

	// cost_s = scenCost[s]·x over the p and h block.
	scenCost [][]float64

	offH      int // first hedge variable
	offEtaPos int
	offEtaNeg int
	offZ      int
	nstruct   int // structural variables, before the slack block
	nvar      int
}

// buildProblem assembles constraints and objective for the scenario set.
// The returned problem is in StateBuilt.
func buildProblem(units []model.Unit, market model.MarketParameters, paths []model.ScenarioPath, cfg Config) (*problem, error) {
	horizon := paths[0].Horizon()
	n := len(paths)

	var hedged []model.FuelType
	for _, f := range market.Fuels {
		if spec, ok := market.Hedges[f]; ok && spec.MaxVolume > 0 {
			hedged = append(hedged, f)
		}
	}

	nu := len(units)
	p := &problem{
		state:   StateBuilt,
		units:   units,
		hedged:  hedged,
		horizon: horizon,
		n:       n,
		offH:    nu * horizon,
	}
	p.offEtaPos = p.offH + len(hedged)
	p.offEtaNeg = p.offEtaPos + 1
	p.offZ = p.offEtaNeg + 1
	p.nstruct = p.offZ + n

	maxLoad := scenario.MaxLoad(paths)
	if err := p.staticFeasibility(market, maxLoad); err != nil {
		return nil, err
	}

	p.buildScenarioCosts(market, paths)
	p.buildConstraints(market, maxLoad)
	p.buildObjective(cfg)
	return p, nil
}

// staticFeasibility rejects problems that are unsatisfiable by inspection,
// naming the violated constraints instead of waiting for the simplex to
// fail. The reserve envelope is checked against the worst-case load.
func (p *problem) staticFeasibility(market model.MarketParameters, maxLoad []float64) error {
	var capacity, minSum float64
	for _, u := range p.units {
		capacity += u.MaxMW
		minSum += u.MinMW
	}
	for t, load := range maxLoad {
		req := market.Reserve.RequirementMW(load)
		if load+req > capacity {
			return fmt.Errorf("%w: step %d needs %.2f MW load plus %.2f MW reserve against %.2f MW capacity (violated: %s, %s)",
				model.ErrInfeasible, t, load, req, capacity, conDemand, conReserve)
		}
		if minSum > capacity-req {
			return fmt.Errorf("%w: step %d minimum output %.2f MW leaves less than the %.2f MW reserve (violated: %s, %s)",
				model.ErrInfeasible, t, minSum, req, conCapacity, conReserve)
		}
	}
	return nil
}

// buildScenarioCosts fills scenCost with the linear cost coefficients of
// each scenario. Marginal heat rates are evaluated at the unit midpoint,
// which is exact for linear heat-rate curves.
func (p *problem) buildScenarioCosts(market model.MarketParameters, paths []model.ScenarioPath) {
	p.scenCost = make([][]float64, p.n)
	for s, path := range paths {
		row := make([]float64, p.offEtaPos)
		for i, u := range p.units {
			marg := u.HeatRate.MarginalAt((u.MinMW + u.MaxMW) / 2)
			prices := path.Prices[u.Fuel]
			for t := 0; t < p.horizon; t++ {
				row[i*p.horizon+t] = marg * prices[t]
			}
		}
		for j, f := range p.hedged {
			// Hedge settlement credits volume × (mean price − strike),
			// so its cost coefficient is strike − mean price.
			row[p.offH+j] = market.Hedges[f].Strike - path.MeanPrice(f)
		}
		p.scenCost[s] = row
	}
}

func (p *problem) buildObjective(cfg Config) {
	p.c = make([]float64, p.nvar)
	invN := 1 / float64(p.n)
	for _, row := range p.scenCost {
		for i, v := range row {
			p.c[i] += invN * v
		}
	}
	p.c[p.offEtaPos] = cfg.Lambda
	p.c[p.offEtaNeg] = -cfg.Lambda
	zCoef := cfg.Lambda / ((1 - cfg.Quantile) * float64(p.n))
	for s := 0; s < p.n; s++ {
		p.c[p.offZ+s] = zCoef
	}
}

// buildConstraints lays out one equality row per inequality, each with its
// own slack column. Lower bounds that coincide with the implicit x ≥ 0
// (zero minimum output, zero minimum hedge volume) are omitted rather than
// duplicated as rows.
func (p *problem) buildConstraints(market model.MarketParameters, maxLoad []float64) {
	nu := len(p.units)
	rows := nu * p.horizon // capacity upper bounds
	for _, u := range p.units {
		if u.MinMW > 0 {
			rows += p.horizon
		}
	}
	rows += 2 * nu * (p.horizon - 1) // ramp
	rows += 2 * p.horizon            // demand, reserve
	for _, f := range p.hedged {
		rows++
		if market.Hedges[f].MinVolume > 0 {
			rows++
		}
	}
	rows += p.n // cvar link

	p.nvar = p.nstruct + rows
	p.a = mat.NewDense(rows, p.nvar, nil)
	p.b = make([]float64, rows)
	p.kinds = make([]constraintKind, rows)
	r := 0

	addRow := func(kind constraintKind, rhs float64, set func(row []float64)) {
		row := p.a.RawRowView(r)
		set(row)
		row[p.nstruct+r] = 1 // slack
		p.b[r] = rhs
		p.kinds[r] = kind
		r++
	}

	var capacity float64
	for _, u := range p.units {
		capacity += u.MaxMW
	}

	for i, u := range p.units {
		for t := 0; t < p.horizon; t++ {
			idx := i*p.horizon + t
			addRow(conCapacity, u.MaxMW, func(row []float64) { row[idx] = 1 })
			if u.MinMW > 0 {
				addRow(conCapacity, -u.MinMW, func(row []float64) { row[idx] = -1 })
			}
			if t > 0 {
				addRow(conRamp, u.RampMW, func(row []float64) { row[idx] = 1; row[idx-1] = -1 })
				addRow(conRamp, u.RampMW, func(row []float64) { row[idx] = -1; row[idx-1] = 1 })
			}
		}
	}

	for t := 0; t < p.horizon; t++ {
		load := maxLoad[t]
		addRow(conDemand, -load, func(row []float64) {
			for i := 0; i < nu; i++ {
				row[i*p.horizon+t] = -1
			}
		})
		req := market.Reserve.RequirementMW(load)
		addRow(conReserve, capacity-req, func(row []float64) {
			for i := 0; i < nu; i++ {
				row[i*p.horizon+t] = 1
			}
		})
	}

	for j, f := range p.hedged {
		spec := market.Hedges[f]
		idx := p.offH + j
		addRow(conHedgeBound, spec.MaxVolume, func(row []float64) { row[idx] = 1 })
		if spec.MinVolume > 0 {
			addRow(conHedgeBound, -spec.MinVolume, func(row []float64) { row[idx] = -1 })
		}
	}

	for s := 0; s < p.n; s++ {
		cost := p.scenCost[s]
		addRow(conCVaRLink, 0, func(row []float64) {
			copy(row, cost)
			row[p.offEtaPos] = -1
			row[p.offEtaNeg] = 1
			row[p.offZ+s] = -1
		})
	}
}

// kindSet returns the distinct constraint kinds present in the problem, used
// when the solver reports joint infeasibility without a certificate.
func (p *problem) kindSet() []constraintKind {
	seen := make(map[constraintKind]bool)
	var out []constraintKind
	for _, k := range p.kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
