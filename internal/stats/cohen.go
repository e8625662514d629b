package stats

import (
	"fmt"
	"math"

	"github.com/ahrav/go-concord/internal/domain"
)

// Cohen holds the components of (weighted) Cohen's kappa.
type Cohen struct {
	Kappa    float64
	Observed float64
	Expected float64

	// StandardError is the large-sample standard error of unweighted kappa.
	// It is zero for weighted kappa.
	StandardError float64

	// Table is the k×k contingency table, rows indexed by the first rater.
	Table [][]int
	N     int
}

// AgreementWeights returns the k×k agreement weight matrix for a weighting
// scheme: identity for none, 1-|i-j|/(k-1) for linear and
// 1-((i-j)/(k-1))² for quadratic.
func AgreementWeights(k int, weighting domain.Weighting) ([][]float64, error) {
	if k < 2 {
		return nil, domain.NewInsufficientDataError("agreement_weights", "categories", 2, k)
	}

	w := make([][]float64, k)
	span := float64(k - 1)
	for i := range w {
		w[i] = make([]float64, k)
		for j := range w[i] {
			d := math.Abs(float64(i-j)) / span
			switch weighting {
			case domain.WeightingNone, "":
				if i == j {
					w[i][j] = 1
				}
			case domain.WeightingLinear:
				w[i][j] = 1 - d
			case domain.WeightingQuadratic:
				w[i][j] = 1 - d*d
			default:
				return nil, fmt.Errorf("%w: unknown weighting %q", domain.ErrInvalidConfiguration, weighting)
			}
		}
	}
	return w, nil
}

// CohenKappa computes Cohen's kappa between two raters whose ratings are
// category indices in [0,k). weights is a k×k agreement matrix from
// AgreementWeights; pass unweighted=true to also get the standard error.
//
// kappa = (Po - Pe) / (1 - Pe) with Po = Σ w_ij p_ij and Pe = Σ w_ij r_i c_j.
// When Pe is 1 both raters used a single shared category and kappa is 1.
func CohenKappa(a, b []int, k int, weights [][]float64, unweighted bool) (Cohen, error) {
	const op = "cohen_kappa"

	if len(a) != len(b) {
		return Cohen{}, &domain.DimensionMismatchError{Operation: op, Rater: "second", Expected: len(a), Got: len(b)}
	}
	n := len(a)
	if n < 2 {
		return Cohen{}, domain.NewInsufficientDataError(op, "items", 2, n)
	}
	if len(weights) != k {
		return Cohen{}, fmt.Errorf("%w: weight matrix is %d×%d, expected %d×%d",
			domain.ErrDimensionMismatch, len(weights), len(weights), k, k)
	}

	table := make([][]int, k)
	for i := range table {
		table[i] = make([]int, k)
	}
	for i := range a {
		if a[i] < 0 || a[i] >= k || b[i] < 0 || b[i] >= k {
			return Cohen{}, fmt.Errorf("%w: category index out of range at item %d",
				domain.ErrInvalidCategory, i)
		}
		table[a[i]][b[i]]++
	}

	p, rows, cols := proportions(table, n)

	var observed, expected float64
	for i := range k {
		for j := range k {
			observed += weights[i][j] * p[i][j]
			expected += weights[i][j] * rows[i] * cols[j]
		}
	}

	res := Cohen{Observed: observed, Expected: expected, Table: table, N: n}
	if math.Abs(1-expected) <= degenerateTolerance {
		res.Kappa = 1
		return res, nil
	}
	res.Kappa = (observed - expected) / (1 - expected)

	if unweighted {
		res.StandardError = cohenStandardError(p, rows, cols, res.Kappa, expected, n)
	}
	return res, nil
}

// proportions converts a contingency table into cell, row-marginal and
// column-marginal proportions.
func proportions(table [][]int, n int) (p [][]float64, rows, cols []float64) {
	k := len(table)
	p = make([][]float64, k)
	rows = make([]float64, k)
	cols = make([]float64, k)
	for i := range table {
		p[i] = make([]float64, k)
		for j, c := range table[i] {
			v := float64(c) / float64(n)
			p[i][j] = v
			rows[i] += v
			cols[j] += v
		}
	}
	return p, rows, cols
}

// cohenStandardError is the Fleiss, Cohen & Everitt (1969) large-sample
// standard error of unweighted kappa:
//
//	var = [Σ_i p_ii(1-(r_i+c_i)(1-κ))² + (1-κ)² Σ_{i≠j} p_ij(c_i+r_j)² - (κ-Pe(1-κ))²] / (n(1-Pe)²)
func cohenStandardError(p [][]float64, rows, cols []float64, kappa, expected float64, n int) float64 {
	oneMinus := 1 - kappa
	var diag, off float64
	for i := range p {
		for j := range p[i] {
			if i == j {
				t := 1 - (rows[i]+cols[i])*oneMinus
				diag += p[i][i] * t * t
				continue
			}
			s := cols[i] + rows[j]
			off += p[i][j] * s * s
		}
	}
	c := kappa - expected*oneMinus
	variance := (diag + oneMinus*oneMinus*off - c*c) / (float64(n) * (1 - expected) * (1 - expected))
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
