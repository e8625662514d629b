// Package application provides configuration loading and the orchestration
// of the metric engines into analysis reports.
package application

import (
	"fmt"
	"runtime"

	"github.com/ahrav/go-concord/infrastructure/engines"
	"github.com/ahrav/go-concord/internal/domain"
)

// AnalysisConfig defines a complete reliability analysis run and serves as
// the primary configuration entry point for the system.
// Sections that are omitted from the YAML keep the values of
// DefaultAnalysisConfig.
type AnalysisConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the analysis.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Scale lists the grades in canonical order, best first. An empty scale
	// selects the default A/B/C/D-E essay scale.
	Scale []GradeConfig `yaml:"scale" validate:"omitempty,min=2,max=26,unique=Label,unique=Value,dive"`
	// Agreement configures the inter-rater agreement engine.
	Agreement engines.AgreementConfig `yaml:"agreement"`
	// Consistency configures the cross-trial consistency engine.
	Consistency engines.ConsistencyConfig `yaml:"consistency"`
	// Accuracy configures the comparison against the reference rater.
	Accuracy engines.AccuracyConfig `yaml:"accuracy"`
	// Assessment holds the thresholds of the qualitative verdicts.
	Assessment AssessmentConfig `yaml:"assessment"`
	// Execution controls how criteria are scheduled.
	Execution ExecutionConfig `yaml:"execution"`
}

// Metadata provides descriptive information about an analysis run.
type Metadata struct {
	// Name is the human-readable identifier of the analysis and is copied
	// into every report it produces.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what is being analysed.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels for filtering reports.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
}

// GradeConfig is one grade of a configured scale.
type GradeConfig struct {
	Label string `yaml:"label" validate:"required,max=32"`
	Value int    `yaml:"value"`
}

// AssessmentConfig holds the thresholds that turn the headline statistics of
// a criterion into strong, acceptable or weak verdicts.
// Agreement and consistency are "higher is better"; accuracy is judged on
// the mean absolute error, where lower is better.
type AssessmentConfig struct {
	AgreementStrong     float64 `yaml:"agreement_strong" validate:"gte=-1,lte=1,gtefield=AgreementAcceptable"`
	AgreementAcceptable float64 `yaml:"agreement_acceptable" validate:"gte=-1,lte=1"`

	ConsistencyStrong     float64 `yaml:"consistency_strong" validate:"gte=-1,lte=1,gtefield=ConsistencyAcceptable"`
	ConsistencyAcceptable float64 `yaml:"consistency_acceptable" validate:"gte=-1,lte=1"`

	AccuracyStrongMAE     float64 `yaml:"accuracy_strong_mae" validate:"gte=0,ltefield=AccuracyAcceptableMAE"`
	AccuracyAcceptableMAE float64 `yaml:"accuracy_acceptable_mae" validate:"gte=0"`
}

// ExecutionConfig controls the concurrency of an analysis run.
type ExecutionConfig struct {
	// Workers bounds how many criteria are analysed concurrently.
	// Zero selects twice the number of CPUs.
	Workers int `yaml:"workers" validate:"min=0,max=256"`
}

// DefaultAssessmentConfig returns the thresholds used when none are
// configured: kappa 0.6/0.4, ICC 0.75/0.6, MAE 0.5/1.0.
func DefaultAssessmentConfig() AssessmentConfig {
	return AssessmentConfig{
		AgreementStrong:       0.6,
		AgreementAcceptable:   0.4,
		ConsistencyStrong:     0.75,
		ConsistencyAcceptable: 0.6,
		AccuracyStrongMAE:     0.5,
		AccuracyAcceptableMAE: 1.0,
	}
}

// DefaultAnalysisConfig returns a configuration with every engine at its
// defaults. Callers still need to set Metadata.Name.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Version:     "1.0.0",
		Agreement:   engines.DefaultAgreementConfig(),
		Consistency: engines.DefaultConsistencyConfig(),
		Accuracy:    engines.DefaultAccuracyConfig(),
		Assessment:  DefaultAssessmentConfig(),
	}
}

// GradeScale builds the configured grade scale, or the default scale when
// none is configured.
func (c *AnalysisConfig) GradeScale() (*domain.GradeScale, error) {
	if len(c.Scale) == 0 {
		return domain.DefaultGradeScale(), nil
	}

	grades := make([]domain.Grade, len(c.Scale))
	for i, g := range c.Scale {
		grades[i] = domain.Grade{Label: g.Label, Value: g.Value}
	}
	scale, err := domain.NewGradeScale(grades...)
	if err != nil {
		return nil, fmt.Errorf("invalid grade scale: %w", err)
	}
	return scale, nil
}

// WorkerLimit returns the effective number of concurrent criteria.
func (e ExecutionConfig) WorkerLimit() int {
	if e.Workers <= 0 {
		return runtime.NumCPU() * 2
	}
	return e.Workers
}
