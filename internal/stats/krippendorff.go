package stats

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-concord/internal/domain"
)

// Krippendorff holds the components of Krippendorff's alpha.
type Krippendorff struct {
	Alpha    float64
	Observed float64 // D_o
	Expected float64 // D_e

	// Pairable is the number of values in units rated at least twice.
	Pairable int

	// Values are the distinct observed values, ascending.
	Values []float64
}

// KrippendorffAlpha computes Krippendorff's alpha over units of observed
// values. Each unit lists only the values actually assigned to it, so units
// may have different lengths; units with fewer than two values are not
// pairable and are ignored.
//
// The coincidence matrix o_ck counts ordered value pairs within each unit,
// each weighted by 1/(m_u-1). With n_c = Σ_k o_ck and n = Σ_c n_c:
//
//	D_o = Σ o_ck δ(c,k) / n
//	D_e = Σ n_c n_k δ(c,k) / (n(n-1))
//	alpha = 1 - D_o/D_e, or 1 when D_e is 0.
//
// δ is 0/1 for nominal data, the absolute rank distance between the distinct
// observed values for ordinal data, and the squared difference for interval
// and ratio data.
func KrippendorffAlpha(units [][]float64, level domain.MeasurementLevel) (Krippendorff, error) {
	const op = "krippendorff_alpha"

	var values []float64
	for _, u := range units {
		if len(u) < 2 {
			continue
		}
		for _, v := range u {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Krippendorff{}, fmt.Errorf("%s: invalid value %v", op, v)
			}
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Krippendorff{}, domain.NewInsufficientDataError(op, "pairable values", 2, 0)
	}

	slices.Sort(values)
	values = slices.Compact(values)
	index := make(map[float64]int, len(values))
	for i, v := range values {
		index[v] = i
	}

	delta, err := differenceFunc(level, values)
	if err != nil {
		return Krippendorff{}, err
	}

	k := len(values)
	o := make([][]float64, k)
	for i := range o {
		o[i] = make([]float64, k)
	}

	counts := make([]float64, k)
	for _, u := range units {
		m := len(u)
		if m < 2 {
			continue
		}
		clear(counts)
		for _, v := range u {
			counts[index[v]]++
		}
		w := 1 / float64(m-1)
		for c := range k {
			if counts[c] == 0 {
				continue
			}
			for kk := range k {
				if counts[kk] == 0 {
					continue
				}
				if c == kk {
					o[c][c] += counts[c] * (counts[c] - 1) * w
				} else {
					o[c][kk] += counts[c] * counts[kk] * w
				}
			}
		}
	}

	marginals := make([]float64, k)
	var n float64
	for c := range k {
		for kk := range k {
			marginals[c] += o[c][kk]
		}
		n += marginals[c]
	}

	var do, de float64
	for c := range k {
		for kk := range k {
			d := delta(c, kk)
			if d == 0 {
				continue
			}
			do += o[c][kk] * d
			de += marginals[c] * marginals[kk] * d
		}
	}
	do /= n
	de /= n * (n - 1)

	res := Krippendorff{
		Observed: do,
		Expected: de,
		Pairable: int(math.Round(n)),
		Values:   values,
	}
	if math.Abs(de) <= degenerateTolerance {
		res.Alpha = 1
		return res, nil
	}
	res.Alpha = 1 - do/de
	return res, nil
}

// differenceFunc returns δ over indices into the ascending distinct values.
func differenceFunc(level domain.MeasurementLevel, values []float64) (func(c, k int) float64, error) {
	switch level {
	case domain.LevelNominal:
		return func(c, k int) float64 {
			if c == k {
				return 0
			}
			return 1
		}, nil
	case domain.LevelOrdinal:
		return func(c, k int) float64 {
			return math.Abs(float64(c - k))
		}, nil
	case domain.LevelInterval, domain.LevelRatio:
		return func(c, k int) float64 {
			d := values[c] - values[k]
			return d * d
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown measurement level %q", domain.ErrInvalidConfiguration, level)
	}
}
