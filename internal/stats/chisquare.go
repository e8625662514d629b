package stats

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-concord/internal/domain"
)

// ChiSquare is the outcome of a goodness-of-fit test.
type ChiSquare struct {
	Statistic float64
	DF        int
	PValue    float64
	// Incompatible is set when an observation falls in a category with zero
	// expectation. Statistic then covers only the remaining categories.
	Incompatible bool
}

// ChiSquareGOF tests observed counts against expected counts. Categories
// where both are zero are dropped. A non-zero observation in a category with
// zero expectation makes the distributions incompatible: p is 0 and the
// statistic sums only the categories with positive expectation, so it stays
// finite. With fewer than two usable categories there is nothing to compare
// and p is 1.
func ChiSquareGOF(observed, expected []float64) (ChiSquare, error) {
	if len(observed) != len(expected) {
		return ChiSquare{}, fmt.Errorf("%w: %d observed vs %d expected categories",
			domain.ErrDimensionMismatch, len(observed), len(expected))
	}

	var statistic float64
	used, incompatible := 0, false
	for i := range observed {
		o, e := observed[i], expected[i]
		if o == 0 && e == 0 {
			continue
		}
		used++
		if e == 0 {
			incompatible = true
			continue
		}
		d := o - e
		statistic += d * d / e
	}

	df := used - 1
	if df < 1 {
		return ChiSquare{Statistic: 0, DF: 0, PValue: 1}, nil
	}
	if incompatible {
		return ChiSquare{Statistic: statistic, DF: df, PValue: 0, Incompatible: true}, nil
	}

	p := distuv.ChiSquared{K: float64(df)}.Survival(statistic)
	return ChiSquare{Statistic: statistic, DF: df, PValue: p}, nil
}
