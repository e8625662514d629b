package engines

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/stats"
)

var _ ports.AccuracyEngine = (*AccuracyEngine)(nil)

// AccuracyEngine scores a rater's grades against a reference rater.
//
// Every call validates both series eagerly, then drops the items where
// either side is domain.MissingGrade. Errors are computed on the numeric
// values of the grades; classification scores and the confusion matrix are
// computed over the scale's categories in scale order.
type AccuracyEngine struct {
	name   string
	scale  *domain.GradeScale
	config AccuracyConfig
}

// AccuracyConfig controls the accuracy statistics.
type AccuracyConfig struct {
	// Averaging selects the headline precision/recall/F1 average.
	Averaging domain.Averaging `yaml:"averaging" json:"averaging" validate:"required,oneof=macro micro weighted"`

	// TopN bounds the ranked list of misclassifications.
	TopN int `yaml:"top_n" json:"top_n" validate:"min=1,max=100"`

	// SignificanceLevel is the chi-square p-value above which predicted and
	// reference distributions are reported as similar.
	SignificanceLevel float64 `yaml:"significance_level" json:"significance_level" validate:"gt=0,lt=1"`

	// KappaWeighting is the weighting of the kappa reported by Evaluate.
	KappaWeighting domain.Weighting `yaml:"kappa_weighting" json:"kappa_weighting" validate:"required,oneof=none linear quadratic"`

	// Bootstrap enables resampled confidence intervals in Evaluate. Its
	// Confidence also sets the coverage of the unweighted kappa interval.
	Bootstrap BootstrapConfig `yaml:"bootstrap" json:"bootstrap"`
}

// DefaultAccuracyConfig returns weighted averaging, the top five
// misclassifications, p > 0.05 similarity, quadratic kappa and no
// bootstrap.
func DefaultAccuracyConfig() AccuracyConfig {
	return AccuracyConfig{
		Averaging:         domain.AveragingWeighted,
		TopN:              5,
		SignificanceLevel: 0.05,
		KappaWeighting:    domain.WeightingQuadratic,
	}
}

// NewAccuracyEngine creates an AccuracyEngine bound to scale.
func NewAccuracyEngine(name string, scale *domain.GradeScale, config AccuracyConfig) (*AccuracyEngine, error) {
	if name == "" {
		return nil, ErrEmptyEngineName
	}
	if scale == nil {
		return nil, ErrNilScale
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &AccuracyEngine{name: name, scale: scale, config: config}, nil
}

// Name returns the unique identifier for this engine instance.
func (e *AccuracyEngine) Name() string { return e.name }

// Validate verifies the engine's configuration.
func (e *AccuracyEngine) Validate() error {
	if err := validate.Struct(e.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// pairs returns the category indices of the items graded by both sides.
func (e *AccuracyEngine) pairs(op string, pred, ref domain.RatingSeries) (p, r []int, err error) {
	r, p, err = pairedIndices(e.scale, op, ref, pred)
	if err != nil {
		return nil, nil, err
	}
	if len(p) == 0 {
		return nil, nil, domain.NewInsufficientDataError(op, "valid prediction/reference pairs", 1, 0)
	}
	return p, r, nil
}

func (e *AccuracyEngine) values(indices []int) []float64 {
	grades := e.scale.Grades()
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = float64(grades[idx].Value)
	}
	return out
}

// MAE computes the mean absolute error between the numeric grades, the
// percentage of exact matches, and the percentage within one grade step.
func (e *AccuracyEngine) MAE(pred, ref domain.RatingSeries) (domain.ErrorResult, error) {
	const op = "mae"

	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.ErrorResult{}, err
	}
	mae, _ := stats.AbsoluteErrors(e.values(p), e.values(r))

	exact, withinOne := 0, 0
	for i := range p {
		d := p[i] - r[i]
		if d == 0 {
			exact++
		}
		if d >= -1 && d <= 1 {
			withinOne++
		}
	}

	return domain.ErrorResult{
		MAE:               domain.MetricOutcome{Name: op, Value: mae, SampleSize: len(p)},
		ExactMatchPercent: percent(exact, len(p)),
		WithinOnePercent:  percent(withinOne, len(p)),
	}, nil
}

// RMSE computes the root mean square error between the numeric grades.
func (e *AccuracyEngine) RMSE(pred, ref domain.RatingSeries) (domain.MetricOutcome, error) {
	const op = "rmse"

	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.MetricOutcome{}, err
	}
	_, rmse := stats.AbsoluteErrors(e.values(p), e.values(r))
	return domain.MetricOutcome{Name: op, Value: rmse, SampleSize: len(p)}, nil
}

// confusion tabulates reference (rows) against prediction (columns).
func (e *AccuracyEngine) confusion(p, r []int) domain.ConfusionMatrix {
	k := e.scale.Len()
	counts := make([][]int, k)
	for i := range counts {
		counts[i] = make([]int, k)
	}
	for i := range p {
		counts[r[i]][p[i]]++
	}
	return domain.ConfusionMatrix{Categories: e.scale.OrderedCategories(), Counts: counts}
}

// PrecisionRecallF1 scores every category of the scale plus the macro,
// micro and support-weighted averages. Categories that are never predicted
// or never present score 0 rather than failing.
func (e *AccuracyEngine) PrecisionRecallF1(
	pred, ref domain.RatingSeries,
	averaging domain.Averaging,
) (domain.ClassificationReport, error) {
	const op = "precision_recall_f1"

	if averaging == "" {
		averaging = e.config.Averaging
	}
	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.ClassificationReport{}, err
	}
	cm := e.confusion(p, r)
	classes, avg := stats.PrecisionRecallF1(cm.Counts)

	report := domain.ClassificationReport{
		Averaging: averaging,
		Macro:     averaged(avg.Macro),
		Micro:     averaged(avg.Micro),
		Weighted:  averaged(avg.Weighted),
		PerClass:  make([]domain.ClassMetrics, len(classes)),
		Samples:   len(p),
	}
	for i, c := range classes {
		report.PerClass[i] = domain.ClassMetrics{
			Label:     cm.Categories[i],
			Precision: c.Precision,
			Recall:    c.Recall,
			F1:        c.F1,
			Support:   c.Support,
		}
	}

	var headline domain.AveragedMetrics
	switch averaging {
	case domain.AveragingMacro:
		headline = report.Macro
	case domain.AveragingMicro:
		headline = report.Micro
	case domain.AveragingWeighted:
		headline = report.Weighted
	default:
		return domain.ClassificationReport{}, fmt.Errorf("%w: unknown averaging %q",
			domain.ErrInvalidConfiguration, averaging)
	}
	report.Precision, report.Recall, report.F1 = headline.Precision, headline.Recall, headline.F1
	return report, nil
}

func averaged(s stats.ClassScores) domain.AveragedMetrics {
	return domain.AveragedMetrics{Precision: s.Precision, Recall: s.Recall, F1: s.F1}
}

// ConfusionMatrixAnalysis returns the raw confusion matrix, its row
// percentages, per-class accuracy (diagonal over row sum), overall accuracy
// (trace over total) and the most frequent misclassifications, most common
// first.
func (e *AccuracyEngine) ConfusionMatrixAnalysis(pred, ref domain.RatingSeries) (domain.ConfusionAnalysis, error) {
	const op = "confusion_matrix"

	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.ConfusionAnalysis{}, err
	}
	cm := e.confusion(p, r)
	total := cm.Total()

	rowPercent := make([][]float64, len(cm.Counts))
	perClass := make(map[string]float64, len(cm.Counts))
	var miss []domain.Misclassification
	for i, row := range cm.Counts {
		rowSum := 0
		for _, c := range row {
			rowSum += c
		}
		rowPercent[i] = make([]float64, len(row))
		for j, c := range row {
			rowPercent[i][j] = percent(c, rowSum)
			if i != j && c > 0 {
				miss = append(miss, domain.Misclassification{
					Reference: cm.Categories[i],
					Predicted: cm.Categories[j],
					Count:     c,
					Percent:   percent(c, total),
				})
			}
		}
		if rowSum > 0 {
			perClass[cm.Categories[i]] = float64(row[i]) / float64(rowSum)
		} else {
			perClass[cm.Categories[i]] = 0
		}
	}

	// Stable sort keeps scale order among equal counts.
	slices.SortStableFunc(miss, func(a, b domain.Misclassification) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(miss) > e.config.TopN {
		miss = miss[:e.config.TopN]
	}

	return domain.ConfusionAnalysis{
		Matrix:                cm,
		RowPercent:            rowPercent,
		PerClassAccuracy:      perClass,
		OverallAccuracy:       float64(cm.Trace()) / float64(total),
		TopMisclassifications: miss,
	}, nil
}

// GradeDistributionComparison tests the predicted grade counts against the
// counts expected from the reference distribution with a chi-square
// goodness-of-fit test. Both sides cover the same valid pairs, so the
// expected counts are the reference counts.
func (e *AccuracyEngine) GradeDistributionComparison(
	pred, ref domain.RatingSeries,
) (domain.DistributionComparison, error) {
	const op = "distribution_comparison"

	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.DistributionComparison{}, err
	}

	k := e.scale.Len()
	observed := make([]float64, k)
	expected := make([]float64, k)
	for i := range p {
		observed[p[i]]++
		expected[r[i]]++
	}

	chi, err := stats.ChiSquareGOF(observed, expected)
	if err != nil {
		return domain.DistributionComparison{}, err
	}

	categories := e.scale.OrderedCategories()
	predicted := make(map[string]int, k)
	reference := make(map[string]int, k)
	for j, label := range categories {
		predicted[label] = int(observed[j])
		reference[label] = int(expected[j])
	}

	return domain.DistributionComparison{
		Categories: categories,
		Predicted:  predicted,
		Reference:  reference,
		ChiSquare:  chi.Statistic,
		DF:         chi.DF,
		PValue:     chi.PValue,
		Similar:    !chi.Incompatible && chi.PValue > e.config.SignificanceLevel,

		Incompatible: chi.Incompatible,
	}, nil
}

// Calibrate returns percentile bootstrap intervals for MAE and the
// configured weighted kappa. Items are resampled with replacement using the
// configured seed, so the intervals are reproducible.
func (e *AccuracyEngine) Calibrate(pred, ref domain.RatingSeries) (domain.CalibrationResult, error) {
	const op = "calibration"

	bc := e.config.Bootstrap
	if bc.Iterations < 1 {
		return domain.CalibrationResult{}, fmt.Errorf("%w: bootstrap iterations must be positive",
			domain.ErrInvalidConfiguration)
	}
	confidence := confidenceOrDefault(bc.Confidence)

	p, r, err := e.pairs(op, pred, ref)
	if err != nil {
		return domain.CalibrationResult{}, err
	}
	pv, rv := e.values(p), e.values(r)
	weights, err := stats.AgreementWeights(e.scale.Len(), e.config.KappaWeighting)
	if err != nil {
		return domain.CalibrationResult{}, err
	}

	maeOf := func(idx []int) (float64, error) {
		var sum float64
		for _, i := range idx {
			sum += math.Abs(pv[i] - rv[i])
		}
		return sum / float64(len(idx)), nil
	}
	kappaOf := func(idx []int) (float64, error) {
		a, b := make([]int, len(idx)), make([]int, len(idx))
		for j, i := range idx {
			a[j], b[j] = r[i], p[i]
		}
		c, err := stats.CohenKappa(a, b, e.scale.Len(), weights, false)
		return c.Kappa, err
	}

	all := make([]int, len(p))
	for i := range all {
		all[i] = i
	}
	mae, _ := maeOf(all)
	kappa, err := kappaOf(all)
	if err != nil {
		return domain.CalibrationResult{}, err
	}

	maeCI, err := stats.BootstrapCI(len(p), bc.Iterations, confidence, bc.Seed, maeOf)
	if err != nil {
		return domain.CalibrationResult{}, err
	}
	kappaCI, err := stats.BootstrapCI(len(p), bc.Iterations, confidence, bc.Seed, kappaOf)
	if err != nil {
		return domain.CalibrationResult{}, err
	}

	return domain.CalibrationResult{
		Iterations: bc.Iterations,
		Seed:       bc.Seed,
		MAE:        domain.MetricOutcome{Name: "mae", Value: mae, CI: &maeCI, SampleSize: len(p)},
		WeightedKappa: domain.MetricOutcome{
			Name:           fmt.Sprintf("cohen_kappa_%s", e.config.KappaWeighting),
			Value:          kappa,
			CI:             &kappaCI,
			Interpretation: domain.InterpretKappa(kappa),
			SampleSize:     len(p),
		},
	}, nil
}

// Evaluate runs every accuracy statistic for pred against ref, adds the
// configured weighted kappa, and calibrates with the bootstrap when it is
// enabled.
func (e *AccuracyEngine) Evaluate(pred, ref domain.RatingSeries) (domain.AccuracyResult, error) {
	mae, err := e.MAE(pred, ref)
	if err != nil {
		return domain.AccuracyResult{}, err
	}
	rmse, err := e.RMSE(pred, ref)
	if err != nil {
		return domain.AccuracyResult{}, err
	}
	classification, err := e.PrecisionRecallF1(pred, ref, "")
	if err != nil {
		return domain.AccuracyResult{}, err
	}
	confusion, err := e.ConfusionMatrixAnalysis(pred, ref)
	if err != nil {
		return domain.AccuracyResult{}, err
	}
	distribution, err := e.GradeDistributionComparison(pred, ref)
	if err != nil {
		return domain.AccuracyResult{}, err
	}

	res := domain.AccuracyResult{
		Rater:          pred.Rater,
		Error:          mae,
		RMSE:           rmse,
		Classification: classification,
		Confusion:      confusion,
		Distribution:   distribution,
	}

	// Kappa needs two paired items; a single overlap still gets the rest.
	if mae.MAE.SampleSize >= 2 {
		kappa, err := cohen(e.scale, ref, pred, e.config.KappaWeighting, confidenceOrDefault(e.config.Bootstrap.Confidence))
		if err != nil {
			return domain.AccuracyResult{}, err
		}
		res.WeightedKappa = &kappa

		if e.config.Bootstrap.Iterations > 0 {
			cal, err := e.Calibrate(pred, ref)
			if err != nil {
				return domain.AccuracyResult{}, err
			}
			res.Calibration = &cal
		}
	}
	return res, nil
}

// UnmarshalParameters deserializes YAML configuration into the engine.
// The engine's configuration remains unchanged on error.
func (e *AccuracyEngine) UnmarshalParameters(params yaml.Node) error {
	config := DefaultAccuracyConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	e.config = config
	return nil
}

// NewAccuracyEngineFromConfig creates an AccuracyEngine from a
// configuration map.
func NewAccuracyEngineFromConfig(
	id string,
	config map[string]any,
	scale *domain.GradeScale,
) (*AccuracyEngine, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultAccuracyConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewAccuracyEngine(id, scale, cfg)
}
