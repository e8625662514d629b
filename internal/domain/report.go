package domain

import "time"

// Quality is a qualitative rating of one reliability dimension.
type Quality string

// Qualities ordered from worst to best.
const (
	QualityWeak         Quality = "weak"
	QualityAcceptable   Quality = "acceptable"
	QualityStrong       Quality = "strong"
	QualityInsufficient Quality = "insufficient data"
)

// Rank orders qualities so the weakest can be picked. Insufficient data
// ranks above strong so that it never masks a measured dimension.
func (q Quality) Rank() int {
	switch q {
	case QualityWeak:
		return 0
	case QualityAcceptable:
		return 1
	case QualityStrong:
		return 2
	default:
		return 3
	}
}

// Assessment is the qualitative verdict for one criterion.
type Assessment struct {
	Agreement   Quality  `json:"agreement"`
	Consistency Quality  `json:"consistency"`
	Accuracy    Quality  `json:"accuracy"`
	Overall     Quality  `json:"overall"`
	Notes       []string `json:"notes,omitempty"`
}

// CriterionResult is the full analysis of one rubric criterion. It is built
// once by the aggregator and never mutated afterwards.
type CriterionResult struct {
	Criterion   string                       `json:"criterion"`
	Items       int                          `json:"items"`
	Agreement   AgreementResult              `json:"agreement"`
	Consistency map[string]ConsistencyResult `json:"consistency,omitempty"`
	Accuracy    map[string]AccuracyResult    `json:"accuracy,omitempty"`
	Assessment  Assessment                   `json:"assessment"`
}

// Report collects the criterion results of one analysis run.
type Report struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Scale       []Grade           `json:"scale"`
	Criteria    []CriterionResult `json:"criteria"`
	GeneratedAt time.Time         `json:"generated_at"`
}
