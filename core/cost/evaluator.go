package cost

import (
	"fmt"
	"math"

	"github.com/kilianp07/fuelhedge/core/model"
)

// feasTol absorbs the numeric slack an LP solution carries. Violations below
// this are floating-point noise, not modeling errors.
const feasTol = 1e-6

// Evaluator computes realized cost outcomes for one fleet against scenario
// paths. It never clamps an infeasible decision: the optimizer must see the
// violation.
type Evaluator struct {
	units   []model.Unit
	reserve model.ReservePolicy
}

// NewEvaluator validates the fleet and returns an Evaluator.
func NewEvaluator(units []model.Unit, reserve model.ReservePolicy) (*Evaluator, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no units", model.ErrInvalidInput)
	}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
	}
	if err := reserve.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return &Evaluator{units: units, reserve: reserve}, nil
}

// Units returns the fleet in row order of the decisions this evaluator
// expects.
func (e *Evaluator) Units() []model.Unit { return e.units }

// Evaluate computes the CostOutcome of (path, decision, hedge). It returns an
// InfeasibleDispatchError when the decision violates any ramp, capacity,
// commitment-time or reserve constraint under this scenario.
func (e *Evaluator) Evaluate(path model.ScenarioPath, decision model.DispatchDecision, hedge model.HedgeBook) (model.CostOutcome, error) {
	if err := decision.Validate(); err != nil {
		return model.CostOutcome{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if decision.Horizon() != path.Horizon() {
		return model.CostOutcome{}, fmt.Errorf("%w: decision covers %d steps, scenario %d has %d",
			model.ErrInvalidInput, decision.Horizon(), path.Index, path.Horizon())
	}
	if len(decision.Units) != len(e.units) {
		return model.CostOutcome{}, fmt.Errorf("%w: decision has %d units, fleet has %d",
			model.ErrInvalidInput, len(decision.Units), len(e.units))
	}

	if err := e.checkFeasible(path, decision); err != nil {
		return model.CostOutcome{}, err
	}

	out := model.CostOutcome{
		Scenario:     path.Index,
		UnitFuelCost: make(map[string]float64, len(e.units)),
		FuelCostBy:   make(map[model.FuelType]float64),
	}
	for i, u := range e.units {
		row := decision.OutputMW[i]
		prices := path.Prices[u.Fuel]
		var unitCost float64
		for t, p := range row {
			if p <= 0 {
				continue
			}
			unitCost += u.HeatRate.At(p) * prices[t]
			if t > 0 && row[t-1] <= 0 {
				out.StartCost += u.StartCost
			}
		}
		out.UnitFuelCost[u.ID] = unitCost
		out.FuelCostBy[u.Fuel] += unitCost
		out.FuelCost += unitCost
	}

	for f, h := range hedge {
		if h.VolumeMMBtu == 0 {
			continue
		}
		out.HedgePnL += h.VolumeMMBtu * (path.MeanPrice(f) - h.Strike)
	}

	out.Total = out.FuelCost + out.StartCost - out.HedgePnL
	return out, nil
}

// checkFeasible validates the decision against every unit and step of one
// scenario. The first step carries no ramp constraint: the pre-horizon
// operating point is not part of the model.
func (e *Evaluator) checkFeasible(path model.ScenarioPath, decision model.DispatchDecision) error {
	h := decision.Horizon()
	for i, u := range e.units {
		row := decision.OutputMW[i]
		for t := 0; t < h; t++ {
			p := row[t]
			if p < -feasTol || p > u.MaxMW+feasTol {
				return &model.InfeasibleDispatchError{
					UnitID: u.ID, Scenario: path.Index, Step: t,
					Constraint: "capacity", Limit: u.MaxMW, Value: p,
				}
			}
			if p > feasTol && p < u.MinMW-feasTol {
				return &model.InfeasibleDispatchError{
					UnitID: u.ID, Scenario: path.Index, Step: t,
					Constraint: "capacity", Limit: u.MinMW, Value: p,
				}
			}
			if t > 0 {
				if delta := math.Abs(p - row[t-1]); delta > u.RampMW+feasTol {
					return &model.InfeasibleDispatchError{
						UnitID: u.ID, Scenario: path.Index, Step: t,
						Constraint: "ramp", Limit: u.RampMW, Value: delta,
					}
				}
			}
		}
		if err := checkCommitmentTimes(u, row, path.Index); err != nil {
			return err
		}
	}

	var capacity float64
	for _, u := range e.units {
		capacity += u.MaxMW
	}
	for t := 0; t < h; t++ {
		total := decision.TotalAt(t)
		load := path.LoadMW[t]
		if total < load-feasTol {
			return &model.InfeasibleDispatchError{
				UnitID: "fleet", Scenario: path.Index, Step: t,
				Constraint: "demand", Limit: load, Value: total,
			}
		}
		req := e.reserve.RequirementMW(load)
		if capacity-total < req-feasTol {
			return &model.InfeasibleDispatchError{
				UnitID: "fleet", Scenario: path.Index, Step: t,
				Constraint: "reserve", Limit: req, Value: capacity - total,
			}
		}
	}
	return nil
}

// checkCommitmentTimes enforces minimum up and down times, counting a unit
// as on when its output is positive. Runs touching the horizon edges are
// exempt: their true length is unknown.
func checkCommitmentTimes(u model.Unit, row []float64, scenario int) error {
	if u.MinUpSteps <= 1 && u.MinDownSteps <= 1 {
		return nil
	}
	runStart := 0
	on := row[0] > feasTol
	for t := 1; t <= len(row); t++ {
		nowOn := t < len(row) && row[t] > feasTol
		if t < len(row) && nowOn == on {
			continue
		}
		length := t - runStart
		interior := runStart > 0 && t < len(row)
		if interior && on && length < u.MinUpSteps {
			return &model.InfeasibleDispatchError{
				UnitID: u.ID, Scenario: scenario, Step: runStart,
				Constraint: "min_up", Limit: float64(u.MinUpSteps), Value: float64(length),
			}
		}
		if interior && !on && length < u.MinDownSteps {
			return &model.InfeasibleDispatchError{
				UnitID: u.ID, Scenario: scenario, Step: runStart,
				Constraint: "min_down", Limit: float64(u.MinDownSteps), Value: float64(length),
			}
		}
		runStart = t
		on = nowOn
	}
	return nil
}
