package application

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-concord/internal/domain"
)

// Assess turns the headline statistics of a criterion into qualitative
// verdicts.
//
//   - Agreement uses Fleiss' kappa, falling back to Krippendorff's alpha
//     when kappa was not computed.
//   - Consistency uses the lowest ICC among the raters that have one.
//   - Accuracy uses the highest MAE among the raters compared with the
//     reference.
//
// Overall is the weakest measured dimension, or insufficient data when no
// dimension could be measured.
func Assess(result domain.CriterionResult, t AssessmentConfig) domain.Assessment {
	var a domain.Assessment

	switch {
	case result.Agreement.Fleiss != nil:
		a.Agreement = higherIsBetter(result.Agreement.Fleiss.Kappa.Value, t.AgreementStrong, t.AgreementAcceptable)
	case result.Agreement.Krippendorff != nil:
		a.Agreement = higherIsBetter(result.Agreement.Krippendorff.Alpha.Value, t.AgreementStrong, t.AgreementAcceptable)
		a.Notes = append(a.Notes, "agreement judged on krippendorff alpha")
	default:
		a.Agreement = domain.QualityInsufficient
	}

	minICC, haveICC := math.Inf(1), false
	for _, rater := range sortedKeys(result.Consistency) {
		c := result.Consistency[rater]
		if c.ICC.Form == "" {
			continue
		}
		haveICC = true
		minICC = min(minICC, c.ICC.ICC.Value)
	}
	if haveICC {
		a.Consistency = higherIsBetter(minICC, t.ConsistencyStrong, t.ConsistencyAcceptable)
	} else {
		a.Consistency = domain.QualityInsufficient
	}

	maxMAE, worst := math.Inf(-1), ""
	for _, rater := range sortedKeys(result.Accuracy) {
		if mae := result.Accuracy[rater].Error.MAE.Value; mae > maxMAE {
			maxMAE, worst = mae, rater
		}
	}
	if worst != "" {
		a.Accuracy = lowerIsBetter(maxMAE, t.AccuracyStrongMAE, t.AccuracyAcceptableMAE)
		if len(result.Accuracy) > 1 {
			a.Notes = append(a.Notes, fmt.Sprintf("accuracy judged on %s (MAE %.3f)", worst, maxMAE))
		}
	} else {
		a.Accuracy = domain.QualityInsufficient
	}

	a.Overall = weakest(a.Agreement, a.Consistency, a.Accuracy)
	return a
}

func higherIsBetter(v, strong, acceptable float64) domain.Quality {
	switch {
	case v >= strong:
		return domain.QualityStrong
	case v >= acceptable:
		return domain.QualityAcceptable
	default:
		return domain.QualityWeak
	}
}

func lowerIsBetter(v, strong, acceptable float64) domain.Quality {
	switch {
	case v <= strong:
		return domain.QualityStrong
	case v <= acceptable:
		return domain.QualityAcceptable
	default:
		return domain.QualityWeak
	}
}

// weakest returns the lowest ranked quality. Insufficient data ranks above
// every measured quality, so it is only returned when nothing was measured.
func weakest(qs ...domain.Quality) domain.Quality {
	out := domain.QualityInsufficient
	for _, q := range qs {
		if q.Rank() < out.Rank() {
			out = q
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
