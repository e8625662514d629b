package middleware

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.AnalysisObserver = (*OTelObserver)(nil)

// tracerName identifies spans emitted by the analysis pipeline.
const tracerName = "github.com/ahrav/go-concord/analysis"

// OTelObserver traces each criterion analysis with an OpenTelemetry span and
// forwards its headline statistics to a MetricsCollector.
// The span travels in the context returned by CriterionStarted, so one
// observer serves any number of concurrent criteria.
type OTelObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewOTelObserver creates an observer using the global tracer provider.
// metrics may be nil.
func NewOTelObserver(metrics ports.MetricsCollector) *OTelObserver {
	return &OTelObserver{
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
	}
}

// CriterionStarted implements ports.AnalysisObserver by starting a span.
func (o *OTelObserver) CriterionStarted(ctx context.Context, criterion string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "MetricsAggregator.AnalyzeCriterion",
		trace.WithAttributes(attribute.String("concord.criterion", criterion)),
	)
	return ctx
}

// CriterionFinished implements ports.AnalysisObserver. It annotates and
// ends the span started by CriterionStarted and records metrics.
func (o *OTelObserver) CriterionFinished(
	ctx context.Context,
	criterion string,
	result *domain.CriterionResult,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	status := "success"
	if err != nil {
		status = "error"
	}
	if o.metrics != nil {
		o.metrics.RecordLatency("analyze_criterion", elapsed, map[string]string{"status": status})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if o.metrics != nil {
			o.metrics.RecordCounter(MetricCriteriaAnalyzed, 1, map[string]string{"status": status})
		}
		return
	}

	o.addSpanAttributes(span, result)
	for _, note := range result.Assessment.Notes {
		span.AddEvent("analysis.note", trace.WithAttributes(attribute.String("note", note)))
	}
	o.updateMetrics(criterion, result)
	span.SetStatus(codes.Ok, "criterion analysed")
}

// addSpanAttributes sets the headline statistics and verdicts on span.
func (o *OTelObserver) addSpanAttributes(span trace.Span, result *domain.CriterionResult) {
	span.SetAttributes(
		attribute.Int("concord.items", result.Items),
		attribute.StringSlice("concord.raters", result.Agreement.Raters),
		attribute.String("concord.assessment.agreement", string(result.Assessment.Agreement)),
		attribute.String("concord.assessment.consistency", string(result.Assessment.Consistency)),
		attribute.String("concord.assessment.accuracy", string(result.Assessment.Accuracy)),
		attribute.String("concord.assessment.overall", string(result.Assessment.Overall)),
	)

	if f := result.Agreement.Fleiss; f != nil {
		span.SetAttributes(attribute.Float64("concord.fleiss_kappa", f.Kappa.Value))
	}
	if k := result.Agreement.Krippendorff; k != nil {
		span.SetAttributes(attribute.Float64("concord.krippendorff_alpha", k.Alpha.Value))
	}
}

// updateMetrics sends the criterion's statistics to the metrics collector.
func (o *OTelObserver) updateMetrics(criterion string, result *domain.CriterionResult) {
	if o.metrics == nil {
		return
	}

	o.metrics.RecordCounter(MetricCriteriaAnalyzed, 1, map[string]string{
		"status":  "success",
		"overall": string(result.Assessment.Overall),
	})

	gauge := func(statistic, rater string, v float64) {
		o.metrics.RecordGauge(MetricStatistic, v, map[string]string{
			"statistic": statistic,
			"criterion": criterion,
			"rater":     rater,
		})
	}
	if f := result.Agreement.Fleiss; f != nil {
		gauge("fleiss_kappa", "", f.Kappa.Value)
	}
	if k := result.Agreement.Krippendorff; k != nil {
		gauge("krippendorff_alpha", "", k.Alpha.Value)
	}

	for _, rater := range sortedRaters(result.Consistency) {
		c := result.Consistency[rater]
		gauge("mean_cv", rater, c.Variability.MeanCV.Value)
		if c.ICC.Form != "" {
			gauge("icc", rater, c.ICC.ICC.Value)
		}
	}
	for _, rater := range sortedRaters(result.Accuracy) {
		a := result.Accuracy[rater]
		gauge("mae", rater, a.Error.MAE.Value)
		gauge("overall_accuracy", rater, a.Confusion.OverallAccuracy)
		o.metrics.RecordHistogram(MetricRaterMAE, a.Error.MAE.Value, map[string]string{"criterion": criterion})
	}
}

func sortedRaters[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
