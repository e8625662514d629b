package stats

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/ahrav/go-concord/internal/domain"
)

// Statistic evaluates a statistic over a resample given as item indices.
type Statistic func(indices []int) (float64, error)

// BootstrapCI returns a percentile bootstrap confidence interval for fn over
// n items. Resampling is driven by a PCG generator seeded with seed, so the
// same inputs always produce the same interval. Resamples for which fn
// fails or returns NaN are skipped; if none succeed the call fails.
func BootstrapCI(n, iterations int, confidence float64, seed uint64, fn Statistic) (domain.ConfidenceInterval, error) {
	const op = "bootstrap"

	if n < 2 {
		return domain.ConfidenceInterval{}, domain.NewInsufficientDataError(op, "items", 2, n)
	}
	if iterations < 1 {
		return domain.ConfidenceInterval{}, fmt.Errorf("%w: bootstrap iterations must be positive, got %d",
			domain.ErrInvalidConfiguration, iterations)
	}
	if confidence <= 0 || confidence >= 1 {
		return domain.ConfidenceInterval{}, fmt.Errorf("%w: confidence must be in (0,1), got %v",
			domain.ErrInvalidConfiguration, confidence)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	idx := make([]int, n)
	samples := make([]float64, 0, iterations)

	for range iterations {
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		v, err := fn(idx)
		if err != nil || math.IsNaN(v) {
			continue
		}
		samples = append(samples, v)
	}
	if len(samples) == 0 {
		return domain.ConfidenceInterval{}, fmt.Errorf("%w: no bootstrap resample produced a value",
			domain.ErrInsufficientData)
	}

	slices.Sort(samples)
	tail := (1 - confidence) / 2
	return domain.ConfidenceInterval{
		Lower: stat.Quantile(tail, stat.LinInterp, samples, nil),
		Upper: stat.Quantile(1-tail, stat.LinInterp, samples, nil),
		Level: confidence,
	}, nil
}
