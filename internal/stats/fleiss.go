// Package stats implements the reliability formulas as small pure functions
// over plain numeric inputs. Engines translate graded ratings into these
// inputs; nothing here knows about labels or raters.
package stats

import (
	"fmt"
	"math"

	"github.com/ahrav/go-concord/internal/domain"
)

// degenerateTolerance absorbs floating-point noise when testing whether an
// expected agreement or disagreement sits exactly on its degenerate value.
const degenerateTolerance = 1e-12

// Fleiss holds the components of Fleiss' kappa.
type Fleiss struct {
	Kappa       float64
	Observed    float64   // mean per-item agreement P̄
	Expected    float64   // chance agreement P̄e
	Proportions []float64 // marginal proportion p_j per category
	Items       int
	Raters      int
}

// FleissKappa computes Fleiss' kappa from an item-by-category count table,
// where counts[i][j] is the number of raters that put item i in category j.
// Every row must sum to the same rater count R >= 2 and there must be at
// least two items.
//
// P_i = Σ_j n_ij(n_ij-1) / (R(R-1)), P̄ = mean(P_i), p_j = Σ_i n_ij / (N·R),
// P̄e = Σ_j p_j², kappa = (P̄ - P̄e) / (1 - P̄e). When P̄e is 1 every rating
// fell in one category and kappa is defined as 1.
func FleissKappa(counts [][]int) (Fleiss, error) {
	const op = "fleiss_kappa"

	n := len(counts)
	if n < 2 {
		return Fleiss{}, domain.NewInsufficientDataError(op, "items", 2, n)
	}

	categories := len(counts[0])
	raters := 0
	for _, c := range counts[0] {
		raters += c
	}
	if raters < 2 {
		return Fleiss{}, domain.NewInsufficientDataError(op, "raters", 2, raters)
	}

	totals := make([]float64, categories)
	var sumP float64
	pairs := float64(raters * (raters - 1))

	for i, row := range counts {
		if len(row) != categories {
			return Fleiss{}, fmt.Errorf("%w: item %d has %d categories, expected %d",
				domain.ErrDimensionMismatch, i, len(row), categories)
		}
		var rowSum, agree int
		for j, c := range row {
			if c < 0 {
				return Fleiss{}, fmt.Errorf("negative count %d at item %d, category %d", c, i, j)
			}
			rowSum += c
			agree += c * (c - 1)
			totals[j] += float64(c)
		}
		if rowSum != raters {
			return Fleiss{}, &domain.DimensionMismatchError{
				Operation: op,
				Rater:     fmt.Sprintf("item %d", i),
				Expected:  raters,
				Got:       rowSum,
			}
		}
		sumP += float64(agree) / pairs
	}

	observed := sumP / float64(n)

	proportions := make([]float64, categories)
	var expected float64
	for j, t := range totals {
		p := t / float64(n*raters)
		proportions[j] = p
		expected += p * p
	}

	kappa := 1.0
	if math.Abs(1-expected) > degenerateTolerance {
		kappa = (observed - expected) / (1 - expected)
	}

	return Fleiss{
		Kappa:       kappa,
		Observed:    observed,
		Expected:    expected,
		Proportions: proportions,
		Items:       n,
		Raters:      raters,
	}, nil
}
