package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MeanStdDev returns the mean and sample standard deviation (n-1 divisor).
// The deviation of fewer than two values is 0.
func MeanStdDev(xs []float64) (mean, sd float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// CoefficientOfVariation returns sd/mean as a percentage, or 0 when the mean
// is 0.
func CoefficientOfVariation(mean, sd float64) float64 {
	if mean == 0 {
		return 0
	}
	return sd / math.Abs(mean) * 100
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Sum(xs) / float64(len(xs))
}

// AbsoluteErrors returns MAE and RMSE for paired predictions and references.
// The slices must have equal, non-zero length.
func AbsoluteErrors(pred, ref []float64) (mae, rmse float64) {
	if len(pred) == 0 {
		return 0, 0
	}
	diff := make([]float64, len(pred))
	floats.SubTo(diff, pred, ref)

	mae = floats.Norm(diff, 1) / float64(len(diff))
	rmse = floats.Norm(diff, 2) / math.Sqrt(float64(len(diff)))
	return mae, rmse
}
