// Package middleware provides cross-cutting concerns for the analysis
// pipeline: Prometheus metrics and OpenTelemetry tracing.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-concord/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// Metric names understood by PrometheusMetrics. Other names fall back to the
// generic operation counter and statistic gauge.
const (
	MetricCriteriaAnalyzed = "criteria_analyzed_total"
	MetricStatistic        = "statistic_value"
	MetricRaterMAE         = "rater_mae"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes how long criteria take to analyse, how many were
// analysed, and the latest headline statistics per criterion.
type PrometheusMetrics struct {
	analysisLatency  *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	criteriaAnalyzed *prometheus.CounterVec
	statistics       *prometheus.GaugeVec
	raterMAE         *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// its collectors with reg, or with the global registry when reg is nil.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		analysisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_analysis_duration_seconds",
				Help:    "Execution time of analysis operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_operations_total",
				Help: "Total number of operations performed by the analysis pipeline.",
			},
			[]string{"operation", "status"},
		),
		criteriaAnalyzed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_criteria_analyzed_total",
				Help: "Total number of criteria analysed, by outcome.",
			},
			[]string{"status", "overall"},
		),
		statistics: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "concord_statistic_value",
				Help: "Latest value of a reliability statistic.",
			},
			[]string{"statistic", "criterion", "rater"},
		),
		raterMAE: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_rater_mae",
				Help:    "Distribution of per-rater mean absolute error against the reference.",
				Buckets: prometheus.LinearBuckets(0, 0.25, 13),
			},
			[]string{"criterion"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.analysisLatency.WithLabelValues(operation, labelOr(labels, "status", "success")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricCriteriaAnalyzed:
		pm.criteriaAnalyzed.WithLabelValues(
			labelOr(labels, "status", "success"),
			labelOr(labels, "overall", "unknown"),
		).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values. The statistic label defaults to the metric name.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	statistic := metric
	if metric == MetricStatistic {
		statistic = labelOr(labels, "statistic", "unknown")
	}
	pm.statistics.WithLabelValues(
		statistic,
		labelOr(labels, "criterion", "unknown"),
		labelOr(labels, "rater", "all"),
	).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. Unknown metrics are recorded as
// latencies in seconds under their own operation name.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricRaterMAE:
		pm.raterMAE.WithLabelValues(labelOr(labels, "criterion", "unknown")).Observe(value)
	default:
		pm.analysisLatency.WithLabelValues(metric, labelOr(labels, "status", "success")).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}
