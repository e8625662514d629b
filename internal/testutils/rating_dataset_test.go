package testutils

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
)

func TestGenerateRatingDataset_Deterministic(t *testing.T) {
	cfg := DefaultDatasetConfig()
	scale := domain.DefaultGradeScale()

	a, err := GenerateRatingDataset(cfg, scale, 42)
	require.NoError(t, err)
	b, err := GenerateRatingDataset(cfg, scale, 42)
	require.NoError(t, err)
	c, err := GenerateRatingDataset(cfg, scale, 43)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different datasets (-a +b):\n%s", diff)
	}
	assert.NotEmpty(t, cmp.Diff(a.Criteria, c.Criteria), "different seeds should differ")
}

func TestGenerateRatingDataset_Shape(t *testing.T) {
	cfg := DefaultDatasetConfig()
	scale := domain.DefaultGradeScale()

	ds, err := GenerateRatingDataset(cfg, scale, 7)
	require.NoError(t, err)

	require.Len(t, ds.Criteria, len(cfg.Criteria))
	for i, c := range ds.Criteria {
		assert.Equal(t, cfg.Criteria[i], c.Criterion)
		require.NotNil(t, c.Reference)
		assert.Equal(t, cfg.Items, c.Reference.Len())
		require.Len(t, c.Raters, len(cfg.Raters))
		for j, r := range c.Raters {
			assert.Equal(t, cfg.Raters[j].Name, r.Rater)
			require.Len(t, r.Trials, cfg.Trials)
			for _, s := range r.Trials {
				require.NoError(t, domain.ValidateSeries(scale, s, true))
			}
		}
	}

	stats := ComputeDatasetStatistics(ds)
	assert.Equal(t, 3, stats.Criteria)
	assert.Equal(t, 3, stats.Raters)
	assert.Equal(t, cfg.Items, stats.Items)
	assert.Equal(t, cfg.Trials, stats.Trials)
	assert.Equal(t, 3*3*3*cfg.Items, stats.Grades)
	assert.Less(t, stats.MissingRate(), 0.1)
}

func TestGenerateRatingDataset_PerfectRater(t *testing.T) {
	cfg := DatasetConfig{
		Criteria:      []string{"thesis"},
		Items:         50,
		Trials:        2,
		Raters:        []RaterProfile{{Name: "oracle", Accuracy: 1, Consistency: 1}},
		WithReference: true,
	}

	ds, err := GenerateRatingDataset(cfg, domain.DefaultGradeScale(), 1)
	require.NoError(t, err)

	c := ds.Criteria[0]
	for _, trial := range c.Raters[0].Trials {
		assert.Equal(t, c.Reference.Grades, trial.Grades)
	}
	assert.Zero(t, ComputeDatasetStatistics(ds).Missing)
}

func TestGenerateRatingDataset_NoReference(t *testing.T) {
	cfg := DefaultDatasetConfig()
	cfg.WithReference = false

	ds, err := GenerateRatingDataset(cfg, domain.DefaultGradeScale(), 1)
	require.NoError(t, err)
	for _, c := range ds.Criteria {
		assert.Nil(t, c.Reference)
	}
}

func TestValidateDatasetConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*DatasetConfig)
	}{
		{name: "no criteria", modify: func(c *DatasetConfig) { c.Criteria = nil }},
		{name: "duplicate criteria", modify: func(c *DatasetConfig) { c.Criteria = []string{"a", "a"} }},
		{name: "blank criterion", modify: func(c *DatasetConfig) { c.Criteria = []string{""} }},
		{name: "zero items", modify: func(c *DatasetConfig) { c.Items = 0 }},
		{name: "zero trials", modify: func(c *DatasetConfig) { c.Trials = 0 }},
		{name: "no raters", modify: func(c *DatasetConfig) { c.Raters = nil }},
		{name: "reserved rater", modify: func(c *DatasetConfig) { c.Raters[0].Name = "reference" }},
		{name: "duplicate rater", modify: func(c *DatasetConfig) { c.Raters[1].Name = c.Raters[0].Name }},
		{name: "accuracy above one", modify: func(c *DatasetConfig) { c.Raters[0].Accuracy = 1.5 }},
		{name: "always missing", modify: func(c *DatasetConfig) { c.Raters[0].Missing = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDatasetConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, ValidateDatasetConfig(cfg), domain.ErrInvalidConfiguration)
		})
	}

	assert.NoError(t, ValidateDatasetConfig(DefaultDatasetConfig()))

	cfg := DefaultDatasetConfig()
	cfg.Items = 0
	cfg.Trials = 0
	var verr *domain.ValidationError
	require.ErrorAs(t, ValidateDatasetConfig(cfg), &verr)
	assert.Equal(t, "DatasetConfig", verr.Entity)
	assert.Len(t, verr.Errors, 2)
}

func TestGenerateRatingDataset_NilScale(t *testing.T) {
	_, err := GenerateRatingDataset(DefaultDatasetConfig(), nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
