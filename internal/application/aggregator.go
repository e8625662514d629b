package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

// ReferenceRater names the ground-truth series when the source left it
// unnamed.
const ReferenceRater = "reference"

// Errors returned by NewMetricsAggregator.
var (
	// ErrNilEngine is returned when one of the three engines is missing.
	ErrNilEngine = errors.New("metric engine is required")

	// ErrNilGradeScale is returned when the aggregator has no grade scale.
	ErrNilGradeScale = errors.New("grade scale is required")
)

// AggregatorConfig holds what a MetricsAggregator computes with.
type AggregatorConfig struct {
	// Name is copied into every report.
	Name        string
	Scale       *domain.GradeScale
	Agreement   ports.AgreementEngine
	Consistency ports.ConsistencyEngine
	Accuracy    ports.AccuracyEngine
	Thresholds  AssessmentConfig
	// Workers bounds concurrently analysed criteria; zero or less means one
	// per criterion.
	Workers int
}

// AggregatorDeps holds the optional collaborators of a MetricsAggregator.
type AggregatorDeps struct {
	// Logger receives structured progress logs. Nil discards them.
	Logger *slog.Logger
	// Observer is notified before and after each criterion. Nil disables it.
	Observer ports.AnalysisObserver
}

// MetricsAggregator composes the agreement, consistency and accuracy
// engines into one report per analysis run. Criteria are analysed
// concurrently; each produces its own newly allocated CriterionResult.
type MetricsAggregator struct {
	name        string
	scale       *domain.GradeScale
	agreement   ports.AgreementEngine
	consistency ports.ConsistencyEngine
	accuracy    ports.AccuracyEngine
	thresholds  AssessmentConfig
	workers     int

	logger   *slog.Logger
	observer ports.AnalysisObserver
	now      func() time.Time
}

// NewMetricsAggregator creates a MetricsAggregator.
// It returns ErrNilGradeScale or ErrNilEngine when a required collaborator
// is missing.
func NewMetricsAggregator(config AggregatorConfig, deps AggregatorDeps) (*MetricsAggregator, error) {
	if config.Scale == nil {
		return nil, ErrNilGradeScale
	}
	if config.Agreement == nil || config.Consistency == nil || config.Accuracy == nil {
		return nil, ErrNilEngine
	}
	for _, e := range []ports.Engine{config.Agreement, config.Consistency, config.Accuracy} {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("engine %s: %w", e.Name(), err)
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &MetricsAggregator{
		name:        config.Name,
		scale:       config.Scale,
		agreement:   config.Agreement,
		consistency: config.Consistency,
		accuracy:    config.Accuracy,
		thresholds:  config.Thresholds,
		workers:     config.Workers,
		logger:      logger,
		observer:    deps.Observer,
		now:         time.Now,
	}, nil
}

// Analyze runs every criterion and assembles the report. Criteria keep
// their input order in the report. The first criterion that fails cancels
// the rest and its error, naming the criterion, is returned.
func (a *MetricsAggregator) Analyze(ctx context.Context, criteria []domain.CriterionRatings) (*domain.Report, error) {
	if len(criteria) == 0 {
		return nil, domain.NewInsufficientDataError("analyze", "criteria", 1, 0)
	}
	seen := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		if _, dup := seen[c.Criterion]; dup {
			return nil, fmt.Errorf("%w: duplicate criterion %q", domain.ErrInvalidConfiguration, c.Criterion)
		}
		seen[c.Criterion] = struct{}{}
	}

	id := uuid.NewString()
	logger := a.logger.With("report_id", id)
	logger.Info("analysis started", "criteria", len(criteria), "workers", a.workers)

	results := make([]domain.CriterionResult, len(criteria))
	g, gctx := errgroup.WithContext(ctx)
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for i := range criteria {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.runCriterion(gctx, logger, criteria[i])
			if err != nil {
				return fmt.Errorf("criterion %q: %w", criteria[i].Criterion, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("analysis failed", "error", err)
		return nil, err
	}

	logger.Info("analysis finished", "criteria", len(results))
	return &domain.Report{
		ID:          id,
		Name:        a.name,
		Scale:       a.scale.Grades(),
		Criteria:    results,
		GeneratedAt: a.now().UTC(),
	}, nil
}

// AnalyzeSource loads every criterion from src and analyses them.
func (a *MetricsAggregator) AnalyzeSource(ctx context.Context, src ports.RatingSource) (*domain.Report, error) {
	names, err := src.Criteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}

	criteria := make([]domain.CriterionRatings, 0, len(names))
	for _, name := range names {
		cr, err := src.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load criterion %q: %w", name, err)
		}
		criteria = append(criteria, cr)
	}
	return a.Analyze(ctx, criteria)
}

// runCriterion wraps AnalyzeCriterion with the observer callbacks and
// logging.
func (a *MetricsAggregator) runCriterion(
	ctx context.Context,
	logger *slog.Logger,
	cr domain.CriterionRatings,
) (domain.CriterionResult, error) {
	if a.observer != nil {
		ctx = a.observer.CriterionStarted(ctx, cr.Criterion)
	}
	start := time.Now()

	res, err := a.AnalyzeCriterion(cr)

	elapsed := time.Since(start)
	if a.observer != nil {
		var out *domain.CriterionResult
		if err == nil {
			out = &res
		}
		a.observer.CriterionFinished(ctx, cr.Criterion, out, elapsed, err)
	}

	if err != nil {
		logger.Warn("criterion failed", "criterion", cr.Criterion, "error", err)
		return domain.CriterionResult{}, err
	}
	logger.Debug("criterion analysed",
		"criterion", cr.Criterion,
		"items", res.Items,
		"overall", res.Assessment.Overall,
		"elapsed", elapsed,
	)
	return res, nil
}

// AnalyzeCriterion computes every statistic for one criterion.
//
// Each rater's trials are first collapsed to a consensus series, which is
// what the agreement statistics and the comparison against the reference
// use. Consistency is computed for raters with at least two trials.
// Malformed input (unknown grades, unequal lengths, duplicate raters) fails
// the criterion; statistics that are merely undefined for the data are left
// out and explained in the assessment notes.
func (a *MetricsAggregator) AnalyzeCriterion(cr domain.CriterionRatings) (domain.CriterionResult, error) {
	if cr.Criterion == "" {
		return domain.CriterionResult{}, fmt.Errorf("%w: criterion name is empty", domain.ErrInvalidConfiguration)
	}
	if len(cr.Raters) == 0 {
		return domain.CriterionResult{}, domain.NewInsufficientDataError("analyze_criterion", "raters", 1, 0)
	}

	raters, err := a.normalizeRaters(cr.Raters)
	if err != nil {
		return domain.CriterionResult{}, err
	}
	var reference *domain.RatingSeries
	if cr.Reference != nil {
		ref := *cr.Reference
		if ref.Rater == "" {
			ref.Rater = ReferenceRater
		}
		if err := domain.ValidateSeries(a.scale, ref, true); err != nil {
			return domain.CriterionResult{}, err
		}
		reference = &ref
	}

	consensus := make(domain.RatingSet, 0, len(raters)+1)
	for _, rt := range raters {
		s, err := rt.Consensus()
		if err != nil {
			return domain.CriterionResult{}, fmt.Errorf("rater %s: %w", rt.Rater, err)
		}
		consensus = append(consensus, s)
	}

	var notes []string
	agreementSet := consensus
	if reference != nil {
		agreementSet = append(agreementSet, *reference)
	}
	agreement, agreementNotes, err := a.agreementFor(agreementSet)
	if err != nil {
		return domain.CriterionResult{}, err
	}
	notes = append(notes, agreementNotes...)

	consistency := make(map[string]domain.ConsistencyResult)
	for _, rt := range raters {
		if len(rt.Trials) < 2 {
			continue
		}
		res, note, err := a.consistencyFor(rt)
		if errors.Is(err, domain.ErrInsufficientData) {
			notes = append(notes, fmt.Sprintf("consistency skipped for %s: %v", rt.Rater, err))
			continue
		}
		if err != nil {
			return domain.CriterionResult{}, fmt.Errorf("rater %s: %w", rt.Rater, err)
		}
		if note != "" {
			notes = append(notes, note)
		}
		consistency[rt.Rater] = res
	}

	accuracy := make(map[string]domain.AccuracyResult)
	if reference != nil {
		for _, s := range consensus {
			res, err := a.accuracy.Evaluate(s, *reference)
			if errors.Is(err, domain.ErrInsufficientData) {
				notes = append(notes, fmt.Sprintf("accuracy skipped for %s: %v", s.Rater, err))
				continue
			}
			if err != nil {
				return domain.CriterionResult{}, fmt.Errorf("rater %s: %w", s.Rater, err)
			}
			accuracy[s.Rater] = res
		}
	}

	result := domain.CriterionResult{
		Criterion:   cr.Criterion,
		Items:       agreementSet[0].Len(),
		Agreement:   agreement,
		Consistency: consistency,
		Accuracy:    accuracy,
	}
	result.Assessment = Assess(result, a.thresholds)
	result.Assessment.Notes = append(notes, result.Assessment.Notes...)
	return result, nil
}

// normalizeRaters copies raters, names unnamed trials after their rater and
// validates every grade. Rater names must be unique and non-empty.
func (a *MetricsAggregator) normalizeRaters(in []domain.RaterTrials) ([]domain.RaterTrials, error) {
	out := make([]domain.RaterTrials, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, rt := range in {
		if rt.Rater == "" {
			return nil, fmt.Errorf("%w: rater %d has no name", domain.ErrInvalidConfiguration, i)
		}
		if rt.Rater == ReferenceRater {
			return nil, fmt.Errorf("%w: rater name %q is reserved", domain.ErrInvalidConfiguration, ReferenceRater)
		}
		if _, dup := seen[rt.Rater]; dup {
			return nil, fmt.Errorf("%w: duplicate rater %q", domain.ErrInvalidConfiguration, rt.Rater)
		}
		seen[rt.Rater] = struct{}{}

		trials := make([]domain.RatingSeries, len(rt.Trials))
		for t, s := range rt.Trials {
			if s.Rater == "" {
				s.Rater = fmt.Sprintf("%s/trial-%d", rt.Rater, t+1)
			}
			if err := domain.ValidateSeries(a.scale, s, true); err != nil {
				return nil, err
			}
			trials[t] = s
		}
		out[i] = domain.RaterTrials{Rater: rt.Rater, Trials: trials}
	}
	return out, nil
}

// agreementFor runs the three agreement statistics over set. Statistics the
// data cannot support are skipped with a note.
func (a *MetricsAggregator) agreementFor(set domain.RatingSet) (domain.AgreementResult, []string, error) {
	res := domain.AgreementResult{Raters: set.Names()}
	if len(set) < 2 {
		return res, []string{"agreement skipped: needs at least two raters"}, nil
	}

	m, err := set.Matrix("agreement")
	if err != nil {
		return domain.AgreementResult{}, nil, err
	}

	var notes []string
	skip := func(stat string, err error) error {
		if errors.Is(err, domain.ErrInsufficientData) {
			notes = append(notes, fmt.Sprintf("%s skipped: %v", stat, err))
			return nil
		}
		return err
	}

	if hasMissing(m) {
		notes = append(notes, "fleiss kappa skipped: missing grades")
	} else {
		fleiss, err := a.agreement.FleissKappa(m)
		if err == nil {
			res.Fleiss = &fleiss
		} else if err := skip("fleiss kappa", err); err != nil {
			return domain.AgreementResult{}, nil, err
		}
	}

	alpha, err := a.agreement.KrippendorffAlpha(m, "")
	if err == nil {
		res.Krippendorff = &alpha
	} else if err := skip("krippendorff alpha", err); err != nil {
		return domain.AgreementResult{}, nil, err
	}

	pairwise, err := a.agreement.PairwiseAgreementMatrix(set, "")
	if err == nil {
		res.Pairwise = &pairwise
	} else if err := skip("pairwise agreement", err); err != nil {
		return domain.AgreementResult{}, nil, err
	}

	return res, notes, nil
}

// consistencyFor evaluates one rater's trials. The ICC needs complete
// trials over at least two items; when it cannot run, variability and trial
// agreement are still reported and the returned note says why the ICC is
// absent.
func (a *MetricsAggregator) consistencyFor(rt domain.RaterTrials) (domain.ConsistencyResult, string, error) {
	trials := domain.RatingSet(rt.Trials)
	m, err := trials.Matrix("consistency")
	if err != nil {
		return domain.ConsistencyResult{}, "", err
	}

	if hasMissing(m) {
		return a.partialConsistency(rt, fmt.Sprintf("icc skipped for %s: missing grades", rt.Rater))
	}

	res, err := a.consistency.Evaluate(rt.Rater, trials)
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		return a.partialConsistency(rt, fmt.Sprintf("icc skipped for %s: %v", rt.Rater, err))
	case err != nil:
		return domain.ConsistencyResult{}, "", err
	}
	return res, "", nil
}

// partialConsistency reports the statistics that tolerate missing grades and
// small tables, leaving the ICC zero valued.
func (a *MetricsAggregator) partialConsistency(rt domain.RaterTrials, note string) (domain.ConsistencyResult, string, error) {
	trials := domain.RatingSet(rt.Trials)
	variability, err := a.consistency.Variability(trials)
	if err != nil {
		return domain.ConsistencyResult{}, "", err
	}
	agreement, err := a.consistency.AgreementPercentage(trials)
	if err != nil {
		return domain.ConsistencyResult{}, "", err
	}
	return domain.ConsistencyResult{
		Rater:       rt.Rater,
		Variability: variability,
		Agreement:   agreement,
	}, note, nil
}

func hasMissing(m domain.RatingMatrix) bool {
	for _, row := range m.Rows {
		for _, g := range row {
			if g == domain.MissingGrade {
				return true
			}
		}
	}
	return false
}
