package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-concord/internal/domain"
)

// ANOVA is the two-way mean-square decomposition of an items × trials table.
type ANOVA struct {
	Items  int
	Trials int

	GrandMean float64

	SSTotal float64

	MSBetween float64 // between items (rows), df n-1
	MSWithin  float64 // within items, df n(k-1)
	MSTrials  float64 // between trials (columns), df k-1
	MSError   float64 // residual, df (n-1)(k-1)
}

// MeanSquares decomposes data shaped [item][trial]. It needs at least two
// items and two trials and a rectangular table.
func MeanSquares(data [][]float64) (ANOVA, error) {
	const op = "intraclass_correlation"

	n := len(data)
	if n < 2 {
		return ANOVA{}, domain.NewInsufficientDataError(op, "items", 2, n)
	}
	k := len(data[0])
	if k < 2 {
		return ANOVA{}, domain.NewInsufficientDataError(op, "trials", 2, k)
	}

	rowMeans := make([]float64, n)
	colMeans := make([]float64, k)
	var total float64
	for i, row := range data {
		if len(row) != k {
			return ANOVA{}, &domain.DimensionMismatchError{
				Operation: op,
				Rater:     fmt.Sprintf("item %d", i),
				Expected:  k,
				Got:       len(row),
			}
		}
		for j, v := range row {
			rowMeans[i] += v
			colMeans[j] += v
			total += v
		}
	}
	grand := total / float64(n*k)
	for i := range rowMeans {
		rowMeans[i] /= float64(k)
	}
	for j := range colMeans {
		colMeans[j] /= float64(n)
	}

	var ssTotal, ssRows, ssCols float64
	for _, row := range data {
		for _, v := range row {
			d := v - grand
			ssTotal += d * d
		}
	}
	for _, m := range rowMeans {
		d := m - grand
		ssRows += d * d
	}
	ssRows *= float64(k)
	for _, m := range colMeans {
		d := m - grand
		ssCols += d * d
	}
	ssCols *= float64(n)

	ssWithin := ssTotal - ssRows
	ssError := ssWithin - ssCols

	return ANOVA{
		Items:     n,
		Trials:    k,
		GrandMean: grand,
		SSTotal:   ssTotal,
		MSBetween: ssRows / float64(n-1),
		MSWithin:  nonNegative(ssWithin) / float64(n*(k-1)),
		MSTrials:  ssCols / float64(k-1),
		MSError:   nonNegative(ssError) / float64((n-1)*(k-1)),
	}, nil
}

// ICC returns the intraclass correlation of the given form. A table with no
// variance at all is perfectly consistent and yields 1; any other zero
// denominator yields 0.
func ICC(a ANOVA, form domain.ICCForm) (float64, error) {
	if a.SSTotal <= degenerateTolerance {
		return 1, nil
	}

	k := float64(a.Trials)
	n := float64(a.Items)
	msr, msw, msc, mse := a.MSBetween, a.MSWithin, a.MSTrials, a.MSError

	var num, den float64
	switch form {
	case domain.ICC11:
		num, den = msr-msw, msr+(k-1)*msw
	case domain.ICC21:
		num, den = msr-mse, msr+(k-1)*mse+k*(msc-mse)/n
	case domain.ICC31:
		num, den = msr-mse, msr+(k-1)*mse
	case domain.ICC1K:
		num, den = msr-msw, msr
	case domain.ICC2K:
		num, den = msr-mse, msr+(msc-mse)/n
	case domain.ICC3K:
		num, den = msr-mse, msr
	default:
		return 0, fmt.Errorf("%w: unknown ICC form %q", domain.ErrInvalidConfiguration, form)
	}

	if math.Abs(den) <= degenerateTolerance {
		return 0, nil
	}
	return num / den, nil
}

// ICCConfidenceInterval derives a confidence interval from the F statistic
// MS_between/MS_within with (n-1, n(k-1)) degrees of freedom. Single-measure
// forms use (F_L-1)/(F_L+k-1); average-measure forms use 1-1/F_L. Bounds are
// clamped to [0,1]. ok is false when the interval is undefined because the
// table carries no between-item variance.
func ICCConfidenceInterval(a ANOVA, form domain.ICCForm, level float64) (ci domain.ConfidenceInterval, f float64, ok bool) {
	if a.MSBetween <= degenerateTolerance {
		return domain.ConfidenceInterval{}, 0, false
	}
	if a.MSWithin <= degenerateTolerance {
		return domain.ConfidenceInterval{Lower: 1, Upper: 1, Level: level}, math.Inf(1), true
	}

	df1 := float64(a.Items - 1)
	df2 := float64(a.Items * (a.Trials - 1))
	f = a.MSBetween / a.MSWithin

	q := 1 - (1-level)/2
	fl := f / distuv.F{D1: df1, D2: df2}.Quantile(q)
	fu := f * distuv.F{D1: df2, D2: df1}.Quantile(q)

	k := float64(a.Trials)
	bound := func(x float64) float64 { return (x - 1) / (x + k - 1) }
	if isAverageForm(form) {
		bound = func(x float64) float64 { return 1 - 1/x }
	}

	return domain.ConfidenceInterval{
		Lower: clamp(bound(fl), 0, 1),
		Upper: clamp(bound(fu), 0, 1),
		Level: level,
	}, f, true
}

func isAverageForm(form domain.ICCForm) bool {
	return form == domain.ICC1K || form == domain.ICC2K || form == domain.ICC3K
}

func nonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
