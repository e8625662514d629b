package domain

import "fmt"

// RatingSeries is the ordered list of grades one rater (or one trial of a
// rater) assigned to the items under analysis. Grades[i] rates item i;
// MissingGrade marks an item the rater did not grade.
type RatingSeries struct {
	Rater  string   `json:"rater" yaml:"rater"`
	Grades []string `json:"grades" yaml:"grades"`
}

// Len returns the number of items in the series.
func (s RatingSeries) Len() int { return len(s.Grades) }

// RatingSet is a collection of named rating series, one per rater or trial,
// kept in caller order so results are reproducible.
type RatingSet []RatingSeries

// Names returns the rater names in order.
func (rs RatingSet) Names() []string {
	names := make([]string, len(rs))
	for i, s := range rs {
		names[i] = s.Rater
	}
	return names
}

// Matrix arranges the set as an item-by-rater matrix. Every series must have
// the same length as the first; the first offender is reported as a
// DimensionMismatchError attributed to operation.
func (rs RatingSet) Matrix(operation string) (RatingMatrix, error) {
	if len(rs) == 0 {
		return RatingMatrix{}, NewInsufficientDataError(operation, "raters", 1, 0)
	}

	items := rs[0].Len()
	for _, s := range rs[1:] {
		if s.Len() != items {
			return RatingMatrix{}, &DimensionMismatchError{
				Operation: operation,
				Rater:     s.Rater,
				Expected:  items,
				Got:       s.Len(),
			}
		}
	}

	rows := make([][]string, items)
	for i := range rows {
		row := make([]string, len(rs))
		for j, s := range rs {
			row[j] = s.Grades[i]
		}
		rows[i] = row
	}
	return RatingMatrix{Raters: rs.Names(), Rows: rows}, nil
}

// RatingMatrix holds grades indexed by [item][rater]. Rows may be ragged
// only for statistics that tolerate missing raters per item.
type RatingMatrix struct {
	// Raters names the columns. For ragged rows it may be shorter than a row
	// or empty, in which case columns are named by position.
	Raters []string `json:"raters"`

	// Rows holds one slice of grades per item.
	Rows [][]string `json:"rows"`
}

// Items returns the number of items (rows).
func (m RatingMatrix) Items() int { return len(m.Rows) }

// NumRaters returns the width of the first row, or zero for an empty matrix.
func (m RatingMatrix) NumRaters() int {
	if len(m.Rows) == 0 {
		return 0
	}
	return len(m.Rows[0])
}

// RaterName returns the name of column j, falling back to its position.
func (m RatingMatrix) RaterName(j int) string {
	if j < len(m.Raters) && m.Raters[j] != "" {
		return m.Raters[j]
	}
	return fmt.Sprintf("#%d", j)
}

// Rectangular reports whether every row has the same number of ratings.
func (m RatingMatrix) Rectangular() bool {
	width := m.NumRaters()
	for _, row := range m.Rows {
		if len(row) != width {
			return false
		}
	}
	return true
}

// Validate checks every rating against the scale. Missing ratings are
// accepted only when allowMissing is set. The first offending rating is
// returned as an InvalidCategoryError naming its item and rater.
func (m RatingMatrix) Validate(scale *GradeScale, allowMissing bool) error {
	for i, row := range m.Rows {
		for j, label := range row {
			if label == MissingGrade && allowMissing {
				continue
			}
			if !scale.Contains(label) {
				return &InvalidCategoryError{
					Label:      label,
					Item:       i,
					Rater:      m.RaterName(j),
					Suggestion: scale.suggest(label),
				}
			}
		}
	}
	return nil
}

// ValidateSeries checks each grade of s against the scale, accepting
// MissingGrade only when allowMissing is set.
func ValidateSeries(scale *GradeScale, s RatingSeries, allowMissing bool) error {
	for i, label := range s.Grades {
		if label == MissingGrade && allowMissing {
			continue
		}
		if !scale.Contains(label) {
			return &InvalidCategoryError{
				Label:      label,
				Item:       i,
				Rater:      s.Rater,
				Suggestion: scale.suggest(label),
			}
		}
	}
	return nil
}

// RaterTrials groups the repeated grading runs of a single rater.
type RaterTrials struct {
	Rater  string         `json:"rater" yaml:"rater"`
	Trials []RatingSeries `json:"trials" yaml:"trials"`
}

// Consensus collapses the trials into one series holding the modal grade
// per item. Missing grades are ignored; ties go to the tied grade seen in
// the earliest trial. An item missing from every trial stays missing.
func (rt RaterTrials) Consensus() (RatingSeries, error) {
	if len(rt.Trials) == 0 {
		return RatingSeries{}, NewInsufficientDataError("consensus", "trials", 1, 0)
	}
	if len(rt.Trials) == 1 {
		grades := make([]string, rt.Trials[0].Len())
		copy(grades, rt.Trials[0].Grades)
		return RatingSeries{Rater: rt.Rater, Grades: grades}, nil
	}

	m, err := RatingSet(rt.Trials).Matrix("consensus")
	if err != nil {
		return RatingSeries{}, err
	}

	grades := make([]string, m.Items())
	for i, row := range m.Rows {
		counts := make(map[string]int, len(row))
		best, bestCount := MissingGrade, 0
		for _, g := range row {
			if g == MissingGrade {
				continue
			}
			counts[g]++
		}
		// Walk in trial order so the earliest tied grade wins.
		for _, g := range row {
			if g == MissingGrade {
				continue
			}
			if counts[g] > bestCount {
				best, bestCount = g, counts[g]
			}
		}
		grades[i] = best
	}
	return RatingSeries{Rater: rt.Rater, Grades: grades}, nil
}

// CriterionRatings is everything rated for one rubric criterion: an
// optional ground-truth reference and the trials of each rater.
type CriterionRatings struct {
	Criterion string        `json:"criterion" yaml:"criterion"`
	Reference *RatingSeries `json:"reference,omitempty" yaml:"reference,omitempty"`
	Raters    []RaterTrials `json:"raters" yaml:"raters"`
}
