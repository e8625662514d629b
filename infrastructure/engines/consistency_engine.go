package engines

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/stats"
)

var _ ports.ConsistencyEngine = (*ConsistencyEngine)(nil)

// ConsistencyEngine measures how stable one rater is across repeated trials
// over the same items. Each series of the input set is one trial.
//
// Variability and AgreementPercentage tolerate missing grades and work on
// whatever each item received. IntraclassCorrelation needs a complete
// items × trials table.
type ConsistencyEngine struct {
	name   string
	scale  *domain.GradeScale
	config ConsistencyConfig
}

// ConsistencyConfig selects the ICC model and interval coverage.
type ConsistencyConfig struct {
	// ICCForm is the default intraclass correlation model, e.g. "2,1".
	ICCForm domain.ICCForm `yaml:"icc_form" json:"icc_form" validate:"required,iccform"`

	// Confidence is the coverage of the ICC interval.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gt=0,lt=1"`
}

// DefaultConsistencyConfig returns ICC(2,1) with a 95% interval.
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{ICCForm: domain.ICC21, Confidence: DefaultConfidence}
}

// NewConsistencyEngine creates a ConsistencyEngine bound to scale.
func NewConsistencyEngine(
	name string,
	scale *domain.GradeScale,
	config ConsistencyConfig,
) (*ConsistencyEngine, error) {
	if name == "" {
		return nil, ErrEmptyEngineName
	}
	if scale == nil {
		return nil, ErrNilScale
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ConsistencyEngine{name: name, scale: scale, config: config}, nil
}

// Name returns the unique identifier for this engine instance.
func (e *ConsistencyEngine) Name() string { return e.name }

// Validate verifies the engine's configuration.
func (e *ConsistencyEngine) Validate() error {
	if err := validate.Struct(e.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// trialMatrix checks the shape and categories of trials and returns the
// item-by-trial matrix.
func (e *ConsistencyEngine) trialMatrix(op string, trials domain.RatingSet, allowMissing bool) (domain.RatingMatrix, error) {
	if len(trials) < 2 {
		return domain.RatingMatrix{}, domain.NewInsufficientDataError(op, "trials", 2, len(trials))
	}
	m, err := trials.Matrix(op)
	if err != nil {
		return domain.RatingMatrix{}, err
	}
	if m.Items() == 0 {
		return domain.RatingMatrix{}, domain.NewInsufficientDataError(op, "items", 1, 0)
	}
	if err := m.Validate(e.scale, allowMissing); err != nil {
		return domain.RatingMatrix{}, err
	}
	return m, nil
}

// numericRow returns the numeric values of the graded cells of row.
func (e *ConsistencyEngine) numericRow(row []string) []float64 {
	out := make([]float64, 0, len(row))
	for _, label := range row {
		if label == domain.MissingGrade {
			continue
		}
		v, _ := e.scale.ToNumeric(label)
		out = append(out, float64(v))
	}
	return out
}

// Variability computes per-item mean, sample standard deviation and
// coefficient of variation across trials. Items no trial graded are left
// out; an item graded once has zero deviation.
func (e *ConsistencyEngine) Variability(trials domain.RatingSet) (domain.VariabilityResult, error) {
	const op = "variability"

	m, err := e.trialMatrix(op, trials, true)
	if err != nil {
		return domain.VariabilityResult{}, err
	}

	items := make([]domain.ItemVariability, 0, m.Items())
	sds := make([]float64, 0, m.Items())
	cvs := make([]float64, 0, m.Items())
	for i, row := range m.Rows {
		values := e.numericRow(row)
		if len(values) == 0 {
			continue
		}
		mean, sd := stats.MeanStdDev(values)
		cv := stats.CoefficientOfVariation(mean, sd)
		items = append(items, domain.ItemVariability{Item: i, Mean: mean, StdDev: sd, CV: cv})
		sds = append(sds, sd)
		cvs = append(cvs, cv)
	}
	if len(items) == 0 {
		return domain.VariabilityResult{}, domain.NewInsufficientDataError(op, "graded items", 1, 0)
	}

	meanCV := stats.Mean(cvs)
	return domain.VariabilityResult{
		Items: items,
		MeanStdDev: domain.MetricOutcome{
			Name:       "mean_std_dev",
			Value:      stats.Mean(sds),
			SampleSize: len(items),
		},
		MeanCV: domain.MetricOutcome{
			Name:           "mean_cv",
			Value:          meanCV,
			Interpretation: domain.InterpretCV(meanCV),
			SampleSize:     len(items),
		},
		Trials: len(trials),
	}, nil
}

// StandardDeviation returns the mean per-item standard deviation.
func (e *ConsistencyEngine) StandardDeviation(trials domain.RatingSet) (domain.MetricOutcome, error) {
	v, err := e.Variability(trials)
	if err != nil {
		return domain.MetricOutcome{}, err
	}
	return v.MeanStdDev, nil
}

// CoefficientOfVariation returns the mean per-item coefficient of variation
// in percent with its interpretation band.
func (e *ConsistencyEngine) CoefficientOfVariation(trials domain.RatingSet) (domain.MetricOutcome, error) {
	v, err := e.Variability(trials)
	if err != nil {
		return domain.MetricOutcome{}, err
	}
	return v.MeanCV, nil
}

// IntraclassCorrelation computes the ICC of the given form, or the
// configured form when form is empty. The interval comes from the F
// statistic MS_between/MS_within and is omitted when the items do not vary.
func (e *ConsistencyEngine) IntraclassCorrelation(
	trials domain.RatingSet,
	form domain.ICCForm,
) (domain.ICCResult, error) {
	const op = "intraclass_correlation"

	if form == "" {
		form = e.config.ICCForm
	}
	if !IsICCForm(form) {
		return domain.ICCResult{}, fmt.Errorf("%w: unknown ICC form %q", domain.ErrInvalidConfiguration, form)
	}

	m, err := e.trialMatrix(op, trials, false)
	if err != nil {
		return domain.ICCResult{}, err
	}
	data := make([][]float64, m.Items())
	for i, row := range m.Rows {
		data[i] = e.numericRow(row)
	}

	a, err := stats.MeanSquares(data)
	if err != nil {
		return domain.ICCResult{}, err
	}
	icc, err := stats.ICC(a, form)
	if err != nil {
		return domain.ICCResult{}, err
	}

	outcome := domain.MetricOutcome{
		Name:           "icc_" + string(form),
		Value:          icc,
		Interpretation: domain.InterpretICC(icc),
		SampleSize:     a.Items,
	}
	res := domain.ICCResult{
		Form:      form,
		MSBetween: a.MSBetween,
		MSWithin:  a.MSWithin,
		MSTrials:  a.MSTrials,
		MSError:   a.MSError,
		DF1:       a.Items - 1,
		DF2:       a.Items * (a.Trials - 1),
		Items:     a.Items,
		Trials:    a.Trials,
	}
	ci, f, ok := stats.ICCConfidenceInterval(a, form, e.config.Confidence)
	if ok {
		outcome.CI = &ci
		if math.IsInf(f, 1) {
			res.PerfectWithinConsistency = true
		} else {
			res.FStatistic = &f
		}
	}
	res.ICC = outcome
	return res, nil
}

// AgreementPercentage classifies every graded item as perfect (one grade
// across all trials), partial (one grade holds a strict majority) or none.
// MeanMajorityShare averages the majority grade's share over partial items.
func (e *ConsistencyEngine) AgreementPercentage(trials domain.RatingSet) (domain.TrialAgreement, error) {
	const op = "agreement_percentage"

	m, err := e.trialMatrix(op, trials, true)
	if err != nil {
		return domain.TrialAgreement{}, err
	}

	var res domain.TrialAgreement
	var shareSum float64
	for _, row := range m.Rows {
		counts := make(map[string]int, len(row))
		graded := 0
		for _, label := range row {
			if label == domain.MissingGrade {
				continue
			}
			counts[label]++
			graded++
		}
		if graded == 0 {
			continue
		}
		res.Items++

		top := 0
		for _, c := range counts {
			top = max(top, c)
		}
		switch {
		case len(counts) == 1:
			res.Perfect++
		case 2*top > graded:
			res.Partial++
			shareSum += float64(top) / float64(graded)
		default:
			res.None++
		}
	}
	if res.Items == 0 {
		return domain.TrialAgreement{}, domain.NewInsufficientDataError(op, "graded items", 1, 0)
	}

	res.PerfectPercent = percent(res.Perfect, res.Items)
	res.PartialPercent = percent(res.Partial, res.Items)
	res.NonePercent = percent(res.None, res.Items)
	if res.Partial > 0 {
		res.MeanMajorityShare = shareSum / float64(res.Partial)
	}
	return res, nil
}

// Evaluate runs every consistency statistic for one rater.
func (e *ConsistencyEngine) Evaluate(rater string, trials domain.RatingSet) (domain.ConsistencyResult, error) {
	v, err := e.Variability(trials)
	if err != nil {
		return domain.ConsistencyResult{}, err
	}
	icc, err := e.IntraclassCorrelation(trials, "")
	if err != nil {
		return domain.ConsistencyResult{}, err
	}
	agreement, err := e.AgreementPercentage(trials)
	if err != nil {
		return domain.ConsistencyResult{}, err
	}
	return domain.ConsistencyResult{Rater: rater, Variability: v, ICC: icc, Agreement: agreement}, nil
}

// UnmarshalParameters deserializes YAML configuration into the engine.
// The engine's configuration remains unchanged on error.
func (e *ConsistencyEngine) UnmarshalParameters(params yaml.Node) error {
	config := DefaultConsistencyConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	e.config = config
	return nil
}

// NewConsistencyEngineFromConfig creates a ConsistencyEngine from a
// configuration map.
func NewConsistencyEngineFromConfig(
	id string,
	config map[string]any,
	scale *domain.GradeScale,
) (*ConsistencyEngine, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultConsistencyConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewConsistencyEngine(id, scale, cfg)
}
