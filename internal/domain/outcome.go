package domain

import (
	"math"
	"slices"
)

// ConfidenceInterval bounds a statistic at a given confidence level.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`

	// Level is the nominal coverage, e.g. 0.95.
	Level float64 `json:"level"`
}

// Contains reports whether v lies inside the closed interval.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// MetricOutcome is the value object every statistic is reported as: the
// number itself, an optional confidence interval, the qualitative label from
// the statistic's threshold table, and the sample size it was computed on.
type MetricOutcome struct {
	Name           string              `json:"name"`
	Value          float64             `json:"value"`
	CI             *ConfidenceInterval `json:"ci,omitempty"`
	Interpretation string              `json:"interpretation,omitempty"`
	SampleSize     int                 `json:"sample_size"`
}

// Band is one row of an interpretation table. A value is labelled by the
// first band whose Below bound it falls under.
type Band struct {
	Below float64
	Label string
}

// Interpretation tables for each statistic family. Callers get copies
// through the accessors below.
var (
	// kappaBands is the Landis & Koch scale shared by Fleiss' and Cohen's kappa.
	kappaBands = []Band{
		{Below: 0.0, Label: "poor"},
		{Below: 0.20, Label: "slight"},
		{Below: 0.40, Label: "fair"},
		{Below: 0.60, Label: "moderate"},
		{Below: 0.80, Label: "substantial"},
		{Below: math.Inf(1), Label: "almost perfect"},
	}

	// alphaBands follows Krippendorff's reliability cut-offs.
	alphaBands = []Band{
		{Below: 0.667, Label: "unreliable"},
		{Below: 0.800, Label: "tentative"},
		{Below: math.Inf(1), Label: "reliable"},
	}

	// iccBands follows Cicchetti's guidelines.
	iccBands = []Band{
		{Below: 0.40, Label: "poor"},
		{Below: 0.60, Label: "fair"},
		{Below: 0.75, Label: "good"},
		{Below: math.Inf(1), Label: "excellent"},
	}

	// cvBands grades the coefficient of variation in percent; lower is better.
	cvBands = []Band{
		{Below: 10, Label: "excellent"},
		{Below: 20, Label: "good"},
		{Below: 30, Label: "moderate"},
		{Below: math.Inf(1), Label: "poor"},
	}
)

// KappaBands returns a copy of the Landis & Koch kappa table.
func KappaBands() []Band { return slices.Clone(kappaBands) }

// AlphaBands returns a copy of the Krippendorff's alpha table.
func AlphaBands() []Band { return slices.Clone(alphaBands) }

// ICCBands returns a copy of the intraclass correlation table.
func ICCBands() []Band { return slices.Clone(iccBands) }

// CVBands returns a copy of the coefficient of variation table.
func CVBands() []Band { return slices.Clone(cvBands) }

// Interpret returns the label of the first band v falls below.
// NaN is reported as "undefined".
func Interpret(v float64, bands []Band) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	for _, b := range bands {
		if v < b.Below {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}

// InterpretKappa labels a kappa value.
func InterpretKappa(k float64) string { return Interpret(k, kappaBands) }

// InterpretAlpha labels a Krippendorff's alpha value.
func InterpretAlpha(a float64) string { return Interpret(a, alphaBands) }

// InterpretICC labels an intraclass correlation.
func InterpretICC(icc float64) string { return Interpret(icc, iccBands) }

// InterpretCV labels a coefficient of variation expressed in percent.
func InterpretCV(cv float64) string { return Interpret(cv, cvBands) }
