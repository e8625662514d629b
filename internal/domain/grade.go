// Package domain contains the core types for reliability analysis: grade
// scales, rating series and matrices, metric outcomes, and the error taxonomy
// shared by every engine.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// MissingGrade is the label used for a rating that was never produced.
// Only statistics that explicitly tolerate missing data accept it.
const MissingGrade = ""

// maxSuggestionDistance bounds how far a mistyped label may be from a known
// label before we stop suggesting it.
const maxSuggestionDistance = 2

// Grade is a single category of an ordinal grading scale.
type Grade struct {
	// Label is the categorical name of the grade (e.g. "A", "D/E").
	Label string `json:"label" yaml:"label"`

	// Value is the numeric ordinal weight of the grade.
	Value int `json:"value" yaml:"value"`
}

// GradeScale is an immutable bidirectional mapping between grade labels and
// their ordinal values. The declaration order of the grades is the canonical
// category order used for contingency tables and distance weighting.
//
// A GradeScale is built once per analysis and passed into each engine; it is
// safe for concurrent use because nothing mutates it after construction.
type GradeScale struct {
	grades  []Grade
	byLabel map[string]int
	byValue map[int]int
}

// NewGradeScale builds a GradeScale from grades in canonical order.
// It returns an error wrapping ErrInvalidConfiguration when fewer than two
// grades are given, a label is empty, or a label or value repeats.
func NewGradeScale(grades ...Grade) (*GradeScale, error) {
	if len(grades) < 2 {
		return nil, fmt.Errorf("%w: grade scale needs at least 2 grades, got %d",
			ErrInvalidConfiguration, len(grades))
	}

	s := &GradeScale{
		grades:  make([]Grade, len(grades)),
		byLabel: make(map[string]int, len(grades)),
		byValue: make(map[int]int, len(grades)),
	}
	copy(s.grades, grades)

	for i, g := range grades {
		if g.Label == MissingGrade {
			return nil, fmt.Errorf("%w: grade %d has an empty label", ErrInvalidConfiguration, i)
		}
		if _, dup := s.byLabel[g.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate grade label %q", ErrInvalidConfiguration, g.Label)
		}
		if _, dup := s.byValue[g.Value]; dup {
			return nil, fmt.Errorf("%w: duplicate grade value %d", ErrInvalidConfiguration, g.Value)
		}
		s.byLabel[g.Label] = i
		s.byValue[g.Value] = i
	}

	return s, nil
}

// DefaultGradeScale returns the four-level essay scale A=4, B=3, C=2, D/E=1.
// The two lowest grades are bucketed into the single compound category "D/E".
func DefaultGradeScale() *GradeScale {
	s, err := NewGradeScale(
		Grade{Label: "A", Value: 4},
		Grade{Label: "B", Value: 3},
		Grade{Label: "C", Value: 2},
		Grade{Label: "D/E", Value: 1},
	)
	if err != nil {
		panic(err) // static input
	}
	return s
}

// ToNumeric returns the ordinal value for label.
func (s *GradeScale) ToNumeric(label string) (int, error) {
	i, err := s.Index(label)
	if err != nil {
		return 0, err
	}
	return s.grades[i].Value, nil
}

// ToLabel returns the label carrying the ordinal value.
func (s *GradeScale) ToLabel(value int) (string, error) {
	i, ok := s.byValue[value]
	if !ok {
		return "", &InvalidCategoryError{Label: strconv.Itoa(value), Item: -1}
	}
	return s.grades[i].Label, nil
}

// Index returns the position of label in the canonical category order.
func (s *GradeScale) Index(label string) (int, error) {
	i, ok := s.byLabel[label]
	if !ok {
		return -1, &InvalidCategoryError{Label: label, Item: -1, Suggestion: s.suggest(label)}
	}
	return i, nil
}

// Contains reports whether label belongs to the scale.
func (s *GradeScale) Contains(label string) bool {
	_, ok := s.byLabel[label]
	return ok
}

// OrderedCategories returns the grade labels in canonical order.
// The returned slice is a copy.
func (s *GradeScale) OrderedCategories() []string {
	out := make([]string, len(s.grades))
	for i, g := range s.grades {
		out[i] = g.Label
	}
	return out
}

// Grades returns a copy of the grades in canonical order.
func (s *GradeScale) Grades() []Grade {
	out := make([]Grade, len(s.grades))
	copy(out, s.grades)
	return out
}

// Len returns the number of categories.
func (s *GradeScale) Len() int { return len(s.grades) }

// suggest finds the closest label within maxSuggestionDistance edits.
// Case-insensitive exact matches win outright.
func (s *GradeScale) suggest(label string) string {
	if label == MissingGrade {
		return ""
	}
	// A Caser is stateful, so each lookup gets its own.
	caser := cases.Fold()
	folded := caser.String(strings.TrimSpace(label))
	best, bestDist := "", maxSuggestionDistance+1
	for _, g := range s.grades {
		candidate := caser.String(g.Label)
		if candidate == folded {
			return g.Label
		}
		if d := levenshtein.ComputeDistance(folded, candidate); d < bestDist {
			best, bestDist = g.Label, d
		}
	}
	return best
}
