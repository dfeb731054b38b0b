package calibrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fuelhedge/core/model"
)

// FitHeatRate fits a polynomial heat-rate curve of the given degree to the
// (output, fuel) observations of one unit by least squares. Rows with zero
// output carry no heat-rate information and are skipped.
func FitHeatRate(rows []Row, degree int) (model.HeatRateCurve, error) {
	if degree < 1 {
		return model.HeatRateCurve{}, fmt.Errorf("degree must be at least 1")
	}
	var xs, ys []float64
	for _, r := range rows {
		if r.OutputMW > 0 {
			xs = append(xs, r.OutputMW)
			ys = append(ys, r.FuelMMBtu)
		}
	}
	if len(xs) < degree+1 {
		return model.HeatRateCurve{}, fmt.Errorf("need at least %d observations with positive output, have %d", degree+1, len(xs))
	}

	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		pow := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, pow)
			pow *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(a)
	var coeffs mat.VecDense
	if err := qr.SolveVecTo(&coeffs, false, b); err != nil {
		return model.HeatRateCurve{}, fmt.Errorf("least-squares solve: %w", err)
	}

	curve := model.HeatRateCurve{Coeffs: make([]float64, degree+1)}
	for j := 0; j <= degree; j++ {
		curve.Coeffs[j] = coeffs.AtVec(j)
	}
	return curve, nil
}

// EstimateCapacity returns the maximum observed capacity of the rows.
func EstimateCapacity(rows []Row) float64 {
	var max float64
	for _, r := range rows {
		if r.CapacityMW > max {
			max = r.CapacityMW
		}
	}
	return max
}

// FitUnits calibrates a heat-rate curve and capacity per unit from a
// snapshot. Fuel type, ramp and cost parameters are not observable in the
// telemetry and stay at their configured values.
func FitUnits(snap Snapshot, degree int) (map[string]model.Unit, error) {
	fitted := make(map[string]model.Unit)
	for id, rows := range snap.ByUnit() {
		curve, err := FitHeatRate(rows, degree)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", id, err)
		}
		fitted[id] = model.Unit{
			ID:       id,
			HeatRate: curve,
			MaxMW:    EstimateCapacity(rows),
		}
	}
	return fitted, nil
}
