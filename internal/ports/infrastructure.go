package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-concord/internal/domain"
)

// RatingSource supplies the ratings of each rubric criterion.
// Implementations could read from files, databases, or experiment-tracking
// stores. The metric engines never touch storage; a RatingSource is how the
// surrounding tooling feeds them.
type RatingSource interface {
	// Criteria lists the criteria available from the source in a stable
	// order.
	Criteria(ctx context.Context) ([]string, error)

	// Load returns every rating recorded for one criterion.
	// It returns an error wrapping ErrCriterionNotFound if the source has
	// no ratings for criterion.
	Load(ctx context.Context, criterion string) (domain.CriterionRatings, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like analysed criteria, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for exposing the latest value of a statistic such as
	// a criterion's kappa.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like per-rater MAE.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// AnalysisObserver receives lifecycle callbacks from the metrics aggregator.
// Implementations must be safe for concurrent use because criteria are
// analysed in parallel.
type AnalysisObserver interface {
	// CriterionStarted is called before a criterion is analysed. The
	// returned context is used for the rest of that criterion's analysis,
	// which lets tracing implementations attach a span.
	CriterionStarted(ctx context.Context, criterion string) context.Context

	// CriterionFinished is called once per criterion with either its result
	// or the error that stopped it.
	CriterionFinished(
		ctx context.Context,
		criterion string,
		result *domain.CriterionResult,
		elapsed time.Duration,
		err error,
	)
}
