package engines

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/stats"
)

var _ ports.AgreementEngine = (*AgreementEngine)(nil)

// AgreementEngine computes chance-corrected agreement between raters:
// Fleiss' kappa for any number of raters, Cohen's kappa for a pair with
// optional distance weighting, Krippendorff's alpha for incomplete data,
// and the all-pairs Cohen's kappa matrix.
//
// Every grade is checked against the engine's GradeScale before any
// statistic is computed; the first unknown label fails the call with an
// InvalidCategoryError naming its item and rater.
//
// Concurrency: Stateless and thread-safe. The scale is immutable and the
// configuration is only replaced through UnmarshalParameters.
type AgreementEngine struct {
	// name is the unique identifier for this engine instance.
	name string
	// scale fixes the category set and its order.
	scale *domain.GradeScale
	// config contains the validated configuration parameters.
	config AgreementConfig
}

// AgreementConfig selects the defaults used when a call does not name a
// weighting scheme or measurement level.
type AgreementConfig struct {
	// Weighting is the default Cohen's kappa weighting for the pairwise matrix.
	Weighting domain.Weighting `yaml:"weighting" json:"weighting" validate:"required,oneof=none linear quadratic"`

	// Level is the default measurement level for Krippendorff's alpha.
	Level domain.MeasurementLevel `yaml:"level" json:"level" validate:"required,oneof=nominal ordinal interval ratio"`

	// Confidence is the coverage of the unweighted Cohen's kappa interval.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gt=0,lt=1"`
}

// DefaultAgreementConfig returns unweighted kappa, ordinal alpha and 95%
// intervals.
func DefaultAgreementConfig() AgreementConfig {
	return AgreementConfig{
		Weighting:  domain.WeightingNone,
		Level:      domain.LevelOrdinal,
		Confidence: DefaultConfidence,
	}
}

// NewAgreementEngine creates an AgreementEngine bound to scale.
// Returns ErrEmptyEngineName if name is empty, ErrNilScale if scale is nil,
// or configuration validation errors if constraints are violated.
func NewAgreementEngine(name string, scale *domain.GradeScale, config AgreementConfig) (*AgreementEngine, error) {
	if name == "" {
		return nil, ErrEmptyEngineName
	}
	if scale == nil {
		return nil, ErrNilScale
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &AgreementEngine{name: name, scale: scale, config: config}, nil
}

// Name returns the unique identifier for this engine instance.
func (e *AgreementEngine) Name() string { return e.name }

// Validate verifies the engine's configuration.
func (e *AgreementEngine) Validate() error {
	if err := validate.Struct(e.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// FleissKappa computes Fleiss' kappa over a rectangular matrix with no
// missing grades. Category proportions are keyed by label.
func (e *AgreementEngine) FleissKappa(m domain.RatingMatrix) (domain.FleissResult, error) {
	const op = "fleiss_kappa"

	if err := requireRectangular(op, m); err != nil {
		return domain.FleissResult{}, err
	}
	if m.Items() < 2 {
		return domain.FleissResult{}, domain.NewInsufficientDataError(op, "items", 2, m.Items())
	}
	if m.NumRaters() < 2 {
		return domain.FleissResult{}, domain.NewInsufficientDataError(op, "raters", 2, m.NumRaters())
	}
	if err := m.Validate(e.scale, false); err != nil {
		return domain.FleissResult{}, err
	}

	counts := make([][]int, m.Items())
	for i, row := range m.Rows {
		counts[i] = make([]int, e.scale.Len())
		for _, label := range row {
			idx, _ := e.scale.Index(label)
			counts[i][idx]++
		}
	}

	f, err := stats.FleissKappa(counts)
	if err != nil {
		return domain.FleissResult{}, err
	}

	categories := e.scale.OrderedCategories()
	props := make(map[string]float64, len(categories))
	for j, label := range categories {
		props[label] = f.Proportions[j]
	}

	return domain.FleissResult{
		Kappa: domain.MetricOutcome{
			Name:           op,
			Value:          f.Kappa,
			Interpretation: domain.InterpretKappa(f.Kappa),
			SampleSize:     f.Items,
		},
		ObservedAgreement:   f.Observed,
		ExpectedAgreement:   f.Expected,
		CategoryProportions: props,
		Items:               f.Items,
		Raters:              f.Raters,
	}, nil
}

// CohenKappa computes Cohen's kappa between a and b. Items either rater
// left ungraded are dropped. Unweighted kappa carries a standard error and
// a normal-theory confidence interval; weighted kappa does not.
func (e *AgreementEngine) CohenKappa(
	a, b domain.RatingSeries,
	weighting domain.Weighting,
) (domain.CohenResult, error) {
	return cohen(e.scale, a, b, weighting, e.config.Confidence)
}

// KrippendorffAlpha computes Krippendorff's alpha over the numeric values of
// the grades. Rows may be ragged and may contain domain.MissingGrade; items
// with fewer than two grades do not contribute. An empty level selects the
// configured default.
func (e *AgreementEngine) KrippendorffAlpha(
	m domain.RatingMatrix,
	level domain.MeasurementLevel,
) (domain.AlphaResult, error) {
	if level == "" {
		level = e.config.Level
	}
	if err := m.Validate(e.scale, true); err != nil {
		return domain.AlphaResult{}, err
	}

	units := make([][]float64, m.Items())
	for i, row := range m.Rows {
		unit := make([]float64, 0, len(row))
		for _, label := range row {
			if label == domain.MissingGrade {
				continue
			}
			v, _ := e.scale.ToNumeric(label)
			unit = append(unit, float64(v))
		}
		units[i] = unit
	}

	k, err := stats.KrippendorffAlpha(units, level)
	if err != nil {
		return domain.AlphaResult{}, err
	}

	return domain.AlphaResult{
		Level: level,
		Alpha: domain.MetricOutcome{
			Name:           "krippendorff_alpha",
			Value:          k.Alpha,
			Interpretation: domain.InterpretAlpha(k.Alpha),
			SampleSize:     k.Pairable,
		},
		ObservedDisagreement: k.Observed,
		ExpectedDisagreement: k.Expected,
		PairableValues:       k.Pairable,
	}, nil
}

// PairwiseAgreementMatrix computes Cohen's kappa for every pair of series in
// set. The matrix is symmetric and its diagonal is exactly 1. An empty
// weighting selects the configured default.
func (e *AgreementEngine) PairwiseAgreementMatrix(
	set domain.RatingSet,
	weighting domain.Weighting,
) (domain.AgreementMatrix, error) {
	const op = "pairwise_agreement"

	if weighting == "" {
		weighting = e.config.Weighting
	}
	if len(set) < 2 {
		return domain.AgreementMatrix{}, domain.NewInsufficientDataError(op, "raters", 2, len(set))
	}
	m, err := set.Matrix(op)
	if err != nil {
		return domain.AgreementMatrix{}, err
	}
	if err := m.Validate(e.scale, true); err != nil {
		return domain.AgreementMatrix{}, err
	}

	n := len(set)
	kappa := make([][]float64, n)
	for i := range kappa {
		kappa[i] = make([]float64, n)
		kappa[i][i] = 1
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			c, err := cohen(e.scale, set[i], set[j], weighting, e.config.Confidence)
			if err != nil {
				return domain.AgreementMatrix{}, fmt.Errorf("%s vs %s: %w", set[i].Rater, set[j].Rater, err)
			}
			kappa[i][j] = c.Kappa.Value
			kappa[j][i] = c.Kappa.Value
		}
	}

	return domain.AgreementMatrix{
		Raters:    set.Names(),
		Weighting: weighting,
		Kappa:     kappa,
	}, nil
}

// UnmarshalParameters deserializes YAML configuration into the engine.
// The engine's configuration remains unchanged on error.
func (e *AgreementEngine) UnmarshalParameters(params yaml.Node) error {
	config := DefaultAgreementConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	e.config = config
	return nil
}

// NewAgreementEngineFromConfig creates an AgreementEngine from a
// configuration map. This is the boundary adapter for YAML/JSON
// configuration.
func NewAgreementEngineFromConfig(
	id string,
	config map[string]any,
	scale *domain.GradeScale,
) (*AgreementEngine, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay user config.
	cfg := DefaultAgreementConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewAgreementEngine(id, scale, cfg)
}

// requireRectangular reports the first row whose width differs from the
// first row's.
func requireRectangular(op string, m domain.RatingMatrix) error {
	width := m.NumRaters()
	for i, row := range m.Rows {
		if len(row) != width {
			return fmt.Errorf("%w: operation=%s, item %d has %d ratings, expected %d",
				domain.ErrDimensionMismatch, op, i, len(row), width)
		}
	}
	return nil
}
