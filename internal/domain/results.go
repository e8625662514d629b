package domain

// Weighting selects the disagreement weights applied to Cohen's kappa.
type Weighting string

// Supported kappa weighting schemes.
const (
	WeightingNone      Weighting = "none"
	WeightingLinear    Weighting = "linear"
	WeightingQuadratic Weighting = "quadratic"
)

// MeasurementLevel selects the difference function of Krippendorff's alpha.
type MeasurementLevel string

// Supported measurement levels.
const (
	LevelNominal  MeasurementLevel = "nominal"
	LevelOrdinal  MeasurementLevel = "ordinal"
	LevelInterval MeasurementLevel = "interval"
	LevelRatio    MeasurementLevel = "ratio"
)

// ICCForm names an intraclass correlation model in Shrout & Fleiss notation
// without the "ICC" prefix, e.g. "2,1".
type ICCForm string

// Supported ICC forms. The ",k" forms report the reliability of the mean of
// all trials rather than of a single trial.
const (
	ICC11 ICCForm = "1,1"
	ICC21 ICCForm = "2,1"
	ICC31 ICCForm = "3,1"
	ICC1K ICCForm = "1,k"
	ICC2K ICCForm = "2,k"
	ICC3K ICCForm = "3,k"
)

// Averaging selects how per-class precision/recall/F1 are combined.
type Averaging string

// Supported averaging strategies.
const (
	AveragingMacro    Averaging = "macro"
	AveragingMicro    Averaging = "micro"
	AveragingWeighted Averaging = "weighted"
)

// FleissResult reports Fleiss' kappa across all raters.
type FleissResult struct {
	Kappa               MetricOutcome      `json:"kappa"`
	ObservedAgreement   float64            `json:"observed_agreement"`
	ExpectedAgreement   float64            `json:"expected_agreement"`
	CategoryProportions map[string]float64 `json:"category_proportions"`
	Items               int                `json:"items"`
	Raters              int                `json:"raters"`
}

// CohenResult reports Cohen's kappa between two raters. StandardError and the
// kappa CI are populated only for unweighted kappa.
type CohenResult struct {
	RaterA            string        `json:"rater_a"`
	RaterB            string        `json:"rater_b"`
	Weighting         Weighting     `json:"weighting"`
	Kappa             MetricOutcome `json:"kappa"`
	ObservedAgreement float64       `json:"observed_agreement"`
	ExpectedAgreement float64       `json:"expected_agreement"`
	StandardError     float64       `json:"standard_error,omitempty"`
	Contingency       [][]int       `json:"contingency"`
}

// AlphaResult reports Krippendorff's alpha.
type AlphaResult struct {
	Level                MeasurementLevel `json:"level"`
	Alpha                MetricOutcome    `json:"alpha"`
	ObservedDisagreement float64          `json:"observed_disagreement"`
	ExpectedDisagreement float64          `json:"expected_disagreement"`
	PairableValues       int              `json:"pairable_values"`
}

// AgreementMatrix is the symmetric all-pairs Cohen's kappa matrix. Kappa[i][j]
// is the agreement between Raters[i] and Raters[j]; the diagonal is 1.
type AgreementMatrix struct {
	Raters    []string    `json:"raters"`
	Weighting Weighting   `json:"weighting"`
	Kappa     [][]float64 `json:"kappa"`
}

// AgreementResult bundles the inter-rater agreement statistics of a criterion.
type AgreementResult struct {
	Raters       []string         `json:"raters"`
	Fleiss       *FleissResult    `json:"fleiss,omitempty"`
	Krippendorff *AlphaResult     `json:"krippendorff,omitempty"`
	Pairwise     *AgreementMatrix `json:"pairwise,omitempty"`
}

// ItemVariability is the spread of one item's grades across trials.
type ItemVariability struct {
	Item   int     `json:"item"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	CV     float64 `json:"cv"`
}

// VariabilityResult reports per-item standard deviation and coefficient of
// variation across trials plus their means.
type VariabilityResult struct {
	Items      []ItemVariability `json:"items"`
	MeanStdDev MetricOutcome     `json:"mean_std_dev"`
	MeanCV     MetricOutcome     `json:"mean_cv"`
	Trials     int               `json:"trials"`
}

// ICCResult reports an intraclass correlation and the mean squares it was
// derived from. FStatistic is nil when MSWithin is zero, since the ratio is
// unbounded; PerfectWithinConsistency marks that case.
type ICCResult struct {
	Form                     ICCForm       `json:"form"`
	ICC                      MetricOutcome `json:"icc"`
	MSBetween                float64       `json:"ms_between"`
	MSWithin                 float64       `json:"ms_within"`
	MSTrials                 float64       `json:"ms_trials"`
	MSError                  float64       `json:"ms_error"`
	FStatistic               *float64      `json:"f_statistic,omitempty"`
	PerfectWithinConsistency bool          `json:"perfect_within_consistency,omitempty"`
	DF1                      int           `json:"df1"`
	DF2                      int           `json:"df2"`
	Items                    int           `json:"items"`
	Trials                   int           `json:"trials"`
}

// TrialAgreement classifies items by how the trials agreed on them.
type TrialAgreement struct {
	Items             int     `json:"items"`
	Perfect           int     `json:"perfect"`
	Partial           int     `json:"partial"`
	None              int     `json:"none"`
	PerfectPercent    float64 `json:"perfect_percent"`
	PartialPercent    float64 `json:"partial_percent"`
	NonePercent       float64 `json:"none_percent"`
	MeanMajorityShare float64 `json:"mean_majority_share"`
}

// ConsistencyResult bundles a rater's cross-trial consistency statistics.
type ConsistencyResult struct {
	Rater       string            `json:"rater"`
	Variability VariabilityResult `json:"variability"`
	ICC         ICCResult         `json:"icc"`
	Agreement   TrialAgreement    `json:"agreement"`
}

// ErrorResult reports mean absolute error with match rates.
type ErrorResult struct {
	MAE               MetricOutcome `json:"mae"`
	ExactMatchPercent float64       `json:"exact_match_percent"`
	WithinOnePercent  float64       `json:"within_one_percent"`
}

// ClassMetrics holds precision, recall and F1 for one category.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// AveragedMetrics is a precision/recall/F1 triple averaged over classes.
type AveragedMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ClassificationReport holds per-class and averaged precision/recall/F1.
// Precision, Recall and F1 repeat the average selected by Averaging.
type ClassificationReport struct {
	Averaging Averaging       `json:"averaging"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Macro     AveragedMetrics `json:"macro"`
	Micro     AveragedMetrics `json:"micro"`
	Weighted  AveragedMetrics `json:"weighted"`
	PerClass  []ClassMetrics  `json:"per_class"`
	Samples   int             `json:"samples"`
}

// ConfusionMatrix cross-tabulates reference grades (rows) against predicted
// grades (columns) over the scale's categories.
type ConfusionMatrix struct {
	Categories []string `json:"categories"`
	Counts     [][]int  `json:"counts"`
}

// Total returns the sum of all cells.
func (cm ConfusionMatrix) Total() int {
	var n int
	for _, row := range cm.Counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// Trace returns the sum of the diagonal.
func (cm ConfusionMatrix) Trace() int {
	var n int
	for i := range cm.Counts {
		n += cm.Counts[i][i]
	}
	return n
}

// Misclassification counts how often Reference was predicted as Predicted.
type Misclassification struct {
	Reference string  `json:"reference"`
	Predicted string  `json:"predicted"`
	Count     int     `json:"count"`
	Percent   float64 `json:"percent"`
}

// ConfusionAnalysis summarises a confusion matrix.
type ConfusionAnalysis struct {
	Matrix                ConfusionMatrix     `json:"matrix"`
	RowPercent            [][]float64         `json:"row_percent"`
	PerClassAccuracy      map[string]float64  `json:"per_class_accuracy"`
	OverallAccuracy       float64             `json:"overall_accuracy"`
	TopMisclassifications []Misclassification `json:"top_misclassifications"`
}

// DistributionComparison tests whether predicted grades follow the reference
// grade distribution. Incompatible marks a predicted grade the reference never
// uses; ChiSquare then sums only the grades the reference does use.
type DistributionComparison struct {
	Categories   []string       `json:"categories"`
	Predicted    map[string]int `json:"predicted"`
	Reference    map[string]int `json:"reference"`
	ChiSquare    float64        `json:"chi_square"`
	DF           int            `json:"df"`
	PValue       float64        `json:"p_value"`
	Similar      bool           `json:"similar"`
	Incompatible bool           `json:"incompatible,omitempty"`
}

// CalibrationResult holds bootstrap confidence intervals for a rater's
// accuracy against the reference.
type CalibrationResult struct {
	Iterations    int           `json:"iterations"`
	Seed          uint64        `json:"seed"`
	MAE           MetricOutcome `json:"mae"`
	WeightedKappa MetricOutcome `json:"weighted_kappa"`
}

// AccuracyResult bundles a rater's accuracy statistics against the reference.
type AccuracyResult struct {
	Rater          string                 `json:"rater"`
	Error          ErrorResult            `json:"error"`
	RMSE           MetricOutcome          `json:"rmse"`
	Classification ClassificationReport   `json:"classification"`
	Confusion      ConfusionAnalysis      `json:"confusion"`
	Distribution   DistributionComparison `json:"distribution"`
	WeightedKappa  *CohenResult           `json:"weighted_kappa,omitempty"`
	Calibration    *CalibrationResult     `json:"calibration,omitempty"`
}
