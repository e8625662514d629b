// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import "github.com/ahrav/go-concord/internal/domain"

// Engine is the common surface of the metric engines.
// Engines are stateless and safe for concurrent use; every call returns
// newly allocated results.
type Engine interface {
	// Name returns a unique identifier for this engine instance.
	// The name is used for logging, metrics labels, and configuration.
	Name() string

	// Validate checks if the engine is properly configured.
	// Return nil if validation passes, or an error describing what is invalid.
	Validate() error
}

// AgreementEngine computes inter-rater agreement statistics.
type AgreementEngine interface {
	Engine

	// FleissKappa computes Fleiss' kappa over a rectangular item-by-rater
	// matrix with at least two raters and two items and no missing grades.
	FleissKappa(m domain.RatingMatrix) (domain.FleissResult, error)

	// CohenKappa computes Cohen's kappa between two raters of equal length.
	// An empty weighting is treated as domain.WeightingNone.
	CohenKappa(a, b domain.RatingSeries, weighting domain.Weighting) (domain.CohenResult, error)

	// KrippendorffAlpha computes Krippendorff's alpha. Rows may be ragged
	// and may hold domain.MissingGrade.
	KrippendorffAlpha(m domain.RatingMatrix, level domain.MeasurementLevel) (domain.AlphaResult, error)

	// PairwiseAgreementMatrix computes Cohen's kappa for every pair of raters.
	PairwiseAgreementMatrix(set domain.RatingSet, weighting domain.Weighting) (domain.AgreementMatrix, error)
}

// ConsistencyEngine computes the stability of one rater across repeated
// trials. Each series in trials is one trial over the same items.
type ConsistencyEngine interface {
	Engine

	// Variability computes per-item standard deviation and coefficient of
	// variation across trials.
	Variability(trials domain.RatingSet) (domain.VariabilityResult, error)

	// StandardDeviation returns the mean per-item sample standard deviation.
	StandardDeviation(trials domain.RatingSet) (domain.MetricOutcome, error)

	// CoefficientOfVariation returns the mean per-item coefficient of
	// variation in percent.
	CoefficientOfVariation(trials domain.RatingSet) (domain.MetricOutcome, error)

	// IntraclassCorrelation computes the ICC of the given form with a
	// confidence interval.
	IntraclassCorrelation(trials domain.RatingSet, form domain.ICCForm) (domain.ICCResult, error)

	// AgreementPercentage classifies items by perfect, partial, or no
	// cross-trial agreement.
	AgreementPercentage(trials domain.RatingSet) (domain.TrialAgreement, error)

	// Evaluate runs variability, the configured ICC form and the agreement
	// percentages for one rater.
	Evaluate(rater string, trials domain.RatingSet) (domain.ConsistencyResult, error)
}

// AccuracyEngine compares a rater's predictions against a reference rater.
// Pairs where either side is missing are dropped before any statistic is
// computed.
type AccuracyEngine interface {
	Engine

	// MAE computes the mean absolute error with exact-match and within-one
	// percentages.
	MAE(pred, ref domain.RatingSeries) (domain.ErrorResult, error)

	// RMSE computes the root mean square error.
	RMSE(pred, ref domain.RatingSeries) (domain.MetricOutcome, error)

	// PrecisionRecallF1 computes per-class and averaged scores. An empty
	// averaging selects the engine's configured default.
	PrecisionRecallF1(pred, ref domain.RatingSeries, averaging domain.Averaging) (domain.ClassificationReport, error)

	// ConfusionMatrixAnalysis summarises the reference-by-prediction table.
	ConfusionMatrixAnalysis(pred, ref domain.RatingSeries) (domain.ConfusionAnalysis, error)

	// GradeDistributionComparison runs a chi-square goodness-of-fit test of
	// the predicted grade counts against the reference distribution.
	GradeDistributionComparison(pred, ref domain.RatingSeries) (domain.DistributionComparison, error)

	// Evaluate runs every accuracy statistic in one pass.
	Evaluate(pred, ref domain.RatingSeries) (domain.AccuracyResult, error)
}
