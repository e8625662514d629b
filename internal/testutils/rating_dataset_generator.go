// Package testutils provides utilities for testing, including synthetic
// rating datasets. These components are intended for internal use within the
// project's test suites and tools and are not part of the public API.
package testutils

import (
	"fmt"
	"math/rand/v2"

	"github.com/ahrav/go-concord/internal/domain"
)

// RaterProfile describes how a simulated rater behaves.
type RaterProfile struct {
	// Name identifies the rater.
	Name string `json:"name" validate:"required,ne=reference"`

	// Accuracy is the probability that the first trial matches the true grade.
	// Misses land on a neighbouring grade.
	Accuracy float64 `json:"accuracy" validate:"gte=0,lte=1"`

	// Consistency is the probability that a later trial repeats the first.
	Consistency float64 `json:"consistency" validate:"gte=0,lte=1"`

	// Missing is the probability that any single grade is left blank.
	Missing float64 `json:"missing" validate:"gte=0,lt=1"`
}

// DatasetConfig controls GenerateRatingDataset.
type DatasetConfig struct {
	Criteria      []string       `json:"criteria" validate:"min=1,unique,dive,required"`
	Items         int            `json:"items" validate:"min=1,max=100000"`
	Trials        int            `json:"trials" validate:"min=1,max=100"`
	Raters        []RaterProfile `json:"raters" validate:"min=1,unique=Name,dive"`
	WithReference bool           `json:"with_reference"`
}

// DefaultDatasetConfig returns three criteria graded by a strong, a middling
// and an erratic rater over thirty items with three trials each.
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Criteria: []string{"thesis", "evidence", "organization"},
		Items:    30,
		Trials:   3,
		Raters: []RaterProfile{
			{Name: "strong", Accuracy: 0.95, Consistency: 0.95},
			{Name: "middling", Accuracy: 0.75, Consistency: 0.85, Missing: 0.02},
			{Name: "erratic", Accuracy: 0.4, Consistency: 0.5, Missing: 0.05},
		},
		WithReference: true,
	}
}

// RatingDataset is a generated set of ratings plus the truth they were drawn
// from.
type RatingDataset struct {
	Metadata DatasetMetadata           `json:"metadata"`
	Criteria []domain.CriterionRatings `json:"criteria"`
}

// DatasetMetadata records how a dataset was produced.
type DatasetMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Seed        uint64   `json:"seed"`
	Scale       []string `json:"scale"`
}

// GenerateRatingDataset draws a synthetic dataset over scale. The same seed
// and config always yield the same dataset. The true grade of every item is
// drawn uniformly and stored as the reference when cfg.WithReference is set.
func GenerateRatingDataset(cfg DatasetConfig, scale *domain.GradeScale, seed uint64) (*RatingDataset, error) {
	if scale == nil {
		return nil, fmt.Errorf("%w: grade scale is required", domain.ErrInvalidConfiguration)
	}
	if err := ValidateDatasetConfig(cfg); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	labels := scale.OrderedCategories()

	ds := &RatingDataset{
		Metadata: DatasetMetadata{
			Name:        "Synthetic Rating Dataset",
			Description: "Simulated rubric grades for reliability testing. Not real rater output.",
			Seed:        seed,
			Scale:       labels,
		},
		Criteria: make([]domain.CriterionRatings, 0, len(cfg.Criteria)),
	}

	for _, criterion := range cfg.Criteria {
		truth := make([]int, cfg.Items)
		for i := range truth {
			truth[i] = rng.IntN(len(labels))
		}

		c := domain.CriterionRatings{
			Criterion: criterion,
			Raters:    make([]domain.RaterTrials, 0, len(cfg.Raters)),
		}
		if cfg.WithReference {
			ref := make([]string, cfg.Items)
			for i, t := range truth {
				ref[i] = labels[t]
			}
			c.Reference = &domain.RatingSeries{Rater: "reference", Grades: ref}
		}

		for _, p := range cfg.Raters {
			c.Raters = append(c.Raters, simulateRater(rng, p, truth, labels, cfg.Trials))
		}
		ds.Criteria = append(ds.Criteria, c)
	}
	return ds, nil
}

func simulateRater(rng *rand.Rand, p RaterProfile, truth []int, labels []string, trials int) domain.RaterTrials {
	first := make([]int, len(truth))
	for i, t := range truth {
		first[i] = t
		if rng.Float64() >= p.Accuracy {
			first[i] = neighbour(rng, t, len(labels))
		}
	}

	rt := domain.RaterTrials{Rater: p.Name, Trials: make([]domain.RatingSeries, trials)}
	for trial := range trials {
		grades := make([]string, len(truth))
		for i, g := range first {
			if trial > 0 && rng.Float64() >= p.Consistency {
				g = neighbour(rng, g, len(labels))
			}
			if rng.Float64() < p.Missing {
				continue
			}
			grades[i] = labels[g]
		}
		rt.Trials[trial] = domain.RatingSeries{Grades: grades}
	}
	return rt
}

// neighbour returns an index one step above or below i, staying on the scale.
func neighbour(rng *rand.Rand, i, n int) int {
	if n < 2 {
		return i
	}
	switch {
	case i == 0:
		return 1
	case i == n-1:
		return n - 2
	case rng.IntN(2) == 0:
		return i - 1
	default:
		return i + 1
	}
}

// DatasetStatistics summarises a rating dataset.
type DatasetStatistics struct {
	Criteria    int
	Items       int
	Raters      int
	Trials      int
	Grades      int
	Missing     int
	GradeCounts map[string]int
}

// MissingRate is the share of grades left blank.
func (s *DatasetStatistics) MissingRate() float64 {
	if s.Grades == 0 {
		return 0
	}
	return float64(s.Missing) / float64(s.Grades)
}

// ComputeDatasetStatistics counts the grades in a dataset. The reference is
// not included.
func ComputeDatasetStatistics(ds *RatingDataset) *DatasetStatistics {
	stats := &DatasetStatistics{
		Criteria:    len(ds.Criteria),
		GradeCounts: make(map[string]int),
	}
	raters := make(map[string]struct{})
	for _, c := range ds.Criteria {
		for _, r := range c.Raters {
			raters[r.Rater] = struct{}{}
			stats.Trials = max(stats.Trials, len(r.Trials))
			for _, s := range r.Trials {
				stats.Items = max(stats.Items, s.Len())
				for _, g := range s.Grades {
					stats.Grades++
					if g == domain.MissingGrade {
						stats.Missing++
						continue
					}
					stats.GradeCounts[g]++
				}
			}
		}
	}
	stats.Raters = len(raters)
	return stats
}
