// Package engines provides the metric engines that implement the
// ports.AgreementEngine, ports.ConsistencyEngine and ports.AccuracyEngine
// interfaces on top of the pure formulas in internal/stats.
package engines

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/stats"
)

// Common errors returned by engine constructors.
var (
	// ErrEmptyEngineName is returned when attempting to create an engine with an empty name.
	ErrEmptyEngineName = errors.New("engine name cannot be empty")

	// ErrNilScale is returned when an engine is created without a grade scale.
	ErrNilScale = errors.New("grade scale is required")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// ICC forms contain commas, which the oneof tag cannot express.
	_ = v.RegisterValidation("iccform", func(fl validator.FieldLevel) bool {
		return IsICCForm(domain.ICCForm(fl.Field().String()))
	})
	return v
}

// IsICCForm reports whether form names a supported ICC model.
func IsICCForm(form domain.ICCForm) bool {
	switch form {
	case domain.ICC11, domain.ICC21, domain.ICC31, domain.ICC1K, domain.ICC2K, domain.ICC3K:
		return true
	}
	return false
}

// BootstrapConfig controls bootstrap confidence intervals.
// Iterations of zero disables resampling.
type BootstrapConfig struct {
	Iterations int    `yaml:"iterations" json:"iterations" validate:"min=0,max=100000"`
	Seed       uint64 `yaml:"seed" json:"seed"`

	// Confidence is the interval coverage; zero selects DefaultConfidence.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gte=0,lt=1"`
}

// DefaultConfidence is the coverage used when none is configured.
const DefaultConfidence = 0.95

func confidenceOrDefault(c float64) float64 {
	if c == 0 {
		return DefaultConfidence
	}
	return c
}

// categoryIndices converts a validated series into scale indices, using -1
// for missing grades.
func categoryIndices(scale *domain.GradeScale, s domain.RatingSeries) []int {
	out := make([]int, s.Len())
	for i, g := range s.Grades {
		if g == domain.MissingGrade {
			out[i] = -1
			continue
		}
		idx, _ := scale.Index(g)
		out[i] = idx
	}
	return out
}

// pairedIndices validates two equal-length series and returns the scale
// indices of every item graded by both. a is the reference for error
// reporting: b is named when the lengths differ.
func pairedIndices(
	scale *domain.GradeScale,
	op string,
	a, b domain.RatingSeries,
) (ai, bi []int, err error) {
	if a.Len() != b.Len() {
		return nil, nil, &domain.DimensionMismatchError{
			Operation: op,
			Rater:     b.Rater,
			Expected:  a.Len(),
			Got:       b.Len(),
		}
	}
	if err := domain.ValidateSeries(scale, a, true); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateSeries(scale, b, true); err != nil {
		return nil, nil, err
	}

	ax, bx := categoryIndices(scale, a), categoryIndices(scale, b)
	ai = make([]int, 0, len(ax))
	bi = make([]int, 0, len(bx))
	for i := range ax {
		if ax[i] < 0 || bx[i] < 0 {
			continue
		}
		ai = append(ai, ax[i])
		bi = append(bi, bx[i])
	}
	return ai, bi, nil
}

// cohen computes Cohen's kappa between two series over the scale's
// categories. Items missing on either side are dropped. The CI is attached
// only to unweighted kappa with a positive standard error.
func cohen(
	scale *domain.GradeScale,
	a, b domain.RatingSeries,
	weighting domain.Weighting,
	level float64,
) (domain.CohenResult, error) {
	const op = "cohen_kappa"

	if weighting == "" {
		weighting = domain.WeightingNone
	}
	ai, bi, err := pairedIndices(scale, op, a, b)
	if err != nil {
		return domain.CohenResult{}, err
	}

	weights, err := stats.AgreementWeights(scale.Len(), weighting)
	if err != nil {
		return domain.CohenResult{}, err
	}
	unweighted := weighting == domain.WeightingNone
	c, err := stats.CohenKappa(ai, bi, scale.Len(), weights, unweighted)
	if err != nil {
		return domain.CohenResult{}, err
	}

	kappa := domain.MetricOutcome{
		Name:           "cohen_kappa",
		Value:          c.Kappa,
		Interpretation: domain.InterpretKappa(c.Kappa),
		SampleSize:     c.N,
	}
	if weighting != domain.WeightingNone {
		kappa.Name = fmt.Sprintf("cohen_kappa_%s", weighting)
	}
	if unweighted && c.StandardError > 0 {
		z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
		kappa.CI = &domain.ConfidenceInterval{
			Lower: clamp(c.Kappa-z*c.StandardError, -1, 1),
			Upper: clamp(c.Kappa+z*c.StandardError, -1, 1),
			Level: level,
		}
	}

	return domain.CohenResult{
		RaterA:            a.Rater,
		RaterB:            b.Rater,
		Weighting:         weighting,
		Kappa:             kappa,
		ObservedAgreement: c.Observed,
		ExpectedAgreement: c.Expected,
		StandardError:     c.StandardError,
		Contingency:       c.Table,
	}, nil
}

func clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
