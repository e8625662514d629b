package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while reading ratings or
// exporting metrics.
var (
	// ErrCriterionNotFound indicates that a rating source holds no ratings
	// for the requested criterion.
	ErrCriterionNotFound = errors.New("criterion not found")

	// ErrSourceUnavailable indicates that the rating source could not be
	// opened or queried.
	ErrSourceUnavailable = errors.New("rating source unavailable")

	// ErrMalformedRatings indicates that the source returned data that
	// cannot be arranged into rating series.
	ErrMalformedRatings = errors.New("malformed ratings")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// SourceError represents an error from a rating source.
// It records which source and criterion the failure relates to.
type SourceError struct {
	// Source identifies the rating source, e.g. a file path or DSN.
	Source string

	// Criterion is the criterion being loaded, empty when listing.
	Criterion string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	if e.Criterion == "" {
		return fmt.Sprintf("rating source error: source=%s, err=%v", e.Source, e.Err)
	}
	return fmt.Sprintf("rating source error: source=%s, criterion=%s, err=%v", e.Source, e.Criterion, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError creates a new SourceError with the given details.
func NewSourceError(source, criterion string, err error) *SourceError {
	return &SourceError{
		Source:    source,
		Criterion: criterion,
		Err:       err,
	}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
