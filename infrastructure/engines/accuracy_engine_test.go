package engines

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
)

func newTestAccuracyEngine(t *testing.T, mutate func(*AccuracyConfig)) *AccuracyEngine {
	t.Helper()
	cfg := DefaultAccuracyConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewAccuracyEngine("accuracy", domain.DefaultGradeScale(), cfg)
	require.NoError(t, err)
	return e
}

// TestAccuracyEngine_PerfectPredictions checks identical predictions and
// reference on the default A-D/E scale.
func TestAccuracyEngine_PerfectPredictions(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)
	pred := series("model", "A", "B", "C")
	ref := series("reference", "A", "B", "C")

	mae, err := e.MAE(pred, ref)
	require.NoError(t, err)
	assert.Zero(t, mae.MAE.Value)
	assert.Equal(t, 100.0, mae.ExactMatchPercent)
	assert.Equal(t, 100.0, mae.WithinOnePercent)
	assert.Equal(t, 3, mae.MAE.SampleSize)

	rmse, err := e.RMSE(pred, ref)
	require.NoError(t, err)
	assert.Zero(t, rmse.Value)

	prf, err := e.PrecisionRecallF1(pred, ref, domain.AveragingWeighted)
	require.NoError(t, err)
	assert.Equal(t, 1.0, prf.F1)
	assert.Equal(t, 1.0, prf.Weighted.F1)

	cm, err := e.ConfusionMatrixAnalysis(pred, ref)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cm.OverallAccuracy)
	assert.Empty(t, cm.TopMisclassifications)
}

// TestAccuracyEngine_SwappedExtremes checks that grading the top item
// bottom and the bottom item top costs three grade points each.
func TestAccuracyEngine_SwappedExtremes(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)
	pred := series("model", "A", "D/E")
	ref := series("reference", "D/E", "A")

	mae, err := e.MAE(pred, ref)
	require.NoError(t, err)
	assert.Equal(t, 3.0, mae.MAE.Value)
	assert.Zero(t, mae.ExactMatchPercent)
	assert.Zero(t, mae.WithinOnePercent)

	rmse, err := e.RMSE(pred, ref)
	require.NoError(t, err)
	assert.Equal(t, 3.0, rmse.Value)
}

func TestAccuracyEngine_MissingPairsAreDropped(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)

	mae, err := e.MAE(series("model", "A", "", "C", "B"), series("reference", "B", "B", "", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, mae.MAE.SampleSize)
	assert.Equal(t, 0.5, mae.MAE.Value)
	assert.Equal(t, 50.0, mae.ExactMatchPercent)
	assert.Equal(t, 100.0, mae.WithinOnePercent)

	_, err = e.MAE(series("model", "A", ""), series("reference", "", "B"))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestAccuracyEngine_ValidationErrors(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)

	t.Run("unknown prediction label", func(t *testing.T) {
		_, err := e.RMSE(series("model", "A", "E"), series("reference", "A", "B"))
		var catErr *domain.InvalidCategoryError
		require.ErrorAs(t, err, &catErr)
		assert.Equal(t, "model", catErr.Rater)
		assert.Equal(t, 1, catErr.Item)
		assert.Equal(t, "E", catErr.Label)
	})

	t.Run("length mismatch names the predicting rater", func(t *testing.T) {
		_, err := e.ConfusionMatrixAnalysis(series("model", "A"), series("reference", "A", "B"))
		var dimErr *domain.DimensionMismatchError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, "model", dimErr.Rater)
		assert.Equal(t, 2, dimErr.Expected)
	})
}

func TestAccuracyEngine_ConfusionMatrixAnalysis(t *testing.T) {
	e := newTestAccuracyEngine(t, func(c *AccuracyConfig) { c.TopN = 2 })

	pred := series("model", "A", "B", "B", "C", "D/E", "A")
	ref := series("reference", "A", "A", "B", "C", "C", "B")

	got, err := e.ConfusionMatrixAnalysis(pred, ref)
	require.NoError(t, err)

	want := domain.ConfusionMatrix{
		Categories: []string{"A", "B", "C", "D/E"},
		Counts: [][]int{
			{1, 1, 0, 0},
			{1, 1, 0, 0},
			{0, 0, 1, 1},
			{0, 0, 0, 0},
		},
	}
	if diff := cmp.Diff(want, got.Matrix); diff != "" {
		t.Errorf("confusion matrix mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 6, got.Matrix.Total())
	assert.Equal(t, 0.5, got.OverallAccuracy)
	assert.Equal(t, []float64{50, 50, 0, 0}, got.RowPercent[0])
	assert.Equal(t, []float64{0, 0, 0, 0}, got.RowPercent[3])
	assert.Equal(t, map[string]float64{"A": 0.5, "B": 0.5, "C": 0.5, "D/E": 0}, got.PerClassAccuracy)

	require.Len(t, got.TopMisclassifications, 2)
	first := got.TopMisclassifications[0]
	assert.Equal(t, "A", first.Reference)
	assert.Equal(t, "B", first.Predicted)
	assert.Equal(t, 1, first.Count)
	assert.InDelta(t, 100.0/6, first.Percent, 1e-12)
	assert.Equal(t, "B", got.TopMisclassifications[1].Reference)
	assert.Equal(t, "A", got.TopMisclassifications[1].Predicted)
}

func TestAccuracyEngine_ConfusionRanksByCount(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)

	got, err := e.ConfusionMatrixAnalysis(
		series("model", "B", "C", "C", "C", "A"),
		series("reference", "A", "B", "B", "B", "A"),
	)
	require.NoError(t, err)
	require.Len(t, got.TopMisclassifications, 2)
	assert.Equal(t, 3, got.TopMisclassifications[0].Count)
	assert.Equal(t, "B", got.TopMisclassifications[0].Reference)
	assert.Equal(t, "C", got.TopMisclassifications[0].Predicted)
}

// TestAccuracyEngine_ConfusionInvariants checks total = valid pairs and
// trace/total = overall accuracy on random data with missing grades.
func TestAccuracyEngine_ConfusionInvariants(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)
	labels := append(domain.DefaultGradeScale().OrderedCategories(), domain.MissingGrade)

	err := quick.Check(func(seed uint64, items uint8) bool {
		rng := rand.New(rand.NewPCG(seed, 2))
		n := int(items%40) + 1
		pred, ref := make([]string, n), make([]string, n)
		valid := 0
		for i := range n {
			pred[i] = labels[rng.IntN(len(labels))]
			ref[i] = labels[rng.IntN(len(labels))]
			if pred[i] != domain.MissingGrade && ref[i] != domain.MissingGrade {
				valid++
			}
		}

		got, err := e.ConfusionMatrixAnalysis(series("p", pred...), series("r", ref...))
		if valid == 0 {
			return err != nil
		}
		if err != nil || got.Matrix.Total() != valid {
			return false
		}
		return got.OverallAccuracy == float64(got.Matrix.Trace())/float64(got.Matrix.Total())
	}, &quick.Config{MaxCount: 300})
	assert.NoError(t, err)
}

// TestAccuracyEngine_RMSENeverBelowMAE checks RMSE >= MAE on random grade
// pairs.
func TestAccuracyEngine_RMSENeverBelowMAE(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)
	labels := domain.DefaultGradeScale().OrderedCategories()

	err := quick.Check(func(seed uint64, items uint8) bool {
		rng := rand.New(rand.NewPCG(seed, 3))
		n := int(items%50) + 1
		pred, ref := make([]string, n), make([]string, n)
		for i := range n {
			pred[i] = labels[rng.IntN(len(labels))]
			ref[i] = labels[rng.IntN(len(labels))]
		}
		mae, err1 := e.MAE(series("p", pred...), series("r", ref...))
		rmse, err2 := e.RMSE(series("p", pred...), series("r", ref...))
		return err1 == nil && err2 == nil && rmse.Value >= mae.MAE.Value-1e-12
	}, &quick.Config{MaxCount: 300})
	assert.NoError(t, err)
}

func TestAccuracyEngine_PrecisionRecallF1(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)
	pred := series("model", "A", "B", "B", "C", "B")
	ref := series("reference", "A", "A", "B", "B", "D/E")

	tests := []struct {
		averaging domain.Averaging
		wantF1    float64
	}{
		// Per-class F1: A 2/3, B 2/5, C 0, D/E 0.
		{domain.AveragingMacro, (2.0/3 + 0.4) / 4},
		{domain.AveragingMicro, 0.4},
		{domain.AveragingWeighted, (2.0/3*2 + 0.4*2) / 5},
	}
	for _, tt := range tests {
		t.Run(string(tt.averaging), func(t *testing.T) {
			got, err := e.PrecisionRecallF1(pred, ref, tt.averaging)
			require.NoError(t, err)
			assert.Equal(t, tt.averaging, got.Averaging)
			assert.InDelta(t, tt.wantF1, got.F1, 1e-12)
			assert.Equal(t, 5, got.Samples)
			require.Len(t, got.PerClass, 4)
			assert.Equal(t, "D/E", got.PerClass[3].Label)
			assert.Zero(t, got.PerClass[3].Precision, "never predicted scores 0")
		})
	}

	t.Run("empty averaging uses the configured default", func(t *testing.T) {
		got, err := e.PrecisionRecallF1(pred, ref, "")
		require.NoError(t, err)
		assert.Equal(t, domain.AveragingWeighted, got.Averaging)
	})

	t.Run("unknown averaging", func(t *testing.T) {
		_, err := e.PrecisionRecallF1(pred, ref, "samples")
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}

func TestAccuracyEngine_GradeDistributionComparison(t *testing.T) {
	e := newTestAccuracyEngine(t, nil)

	t.Run("same counts are similar", func(t *testing.T) {
		got, err := e.GradeDistributionComparison(series("model", "A", "B", "C", "C"), series("reference", "C", "A", "C", "B"))
		require.NoError(t, err)
		assert.Zero(t, got.ChiSquare)
		assert.Equal(t, 2, got.DF)
		assert.InDelta(t, 1.0, got.PValue, 1e-12)
		assert.True(t, got.Similar)
		assert.Equal(t, 2, got.Predicted["C"])
		assert.Equal(t, 0, got.Reference["D/E"])
	})

	t.Run("grade the reference never uses", func(t *testing.T) {
		got, err := e.GradeDistributionComparison(series("model", "A", "D/E"), series("reference", "A", "B"))
		require.NoError(t, err)
		assert.True(t, got.Incompatible)
		assert.InDelta(t, 1.0, got.ChiSquare, 1e-12, "B expects one and sees none")
		assert.Zero(t, got.PValue)
		assert.False(t, got.Similar)

		_, err = json.Marshal(got)
		require.NoError(t, err)
	})

	t.Run("unused reference grade stays encodable", func(t *testing.T) {
		got, err := e.GradeDistributionComparison(series("model", "A", "B", "C", "C"), series("reference", "B", "B", "C", "C"))
		require.NoError(t, err)
		assert.True(t, got.Incompatible)
		assert.False(t, got.Similar)
		assert.Equal(t, 1, got.Predicted["A"])
		assert.Zero(t, got.Reference["A"])

		raw, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"incompatible":true`)
	})

	t.Run("strongly shifted distribution", func(t *testing.T) {
		pred := make([]string, 40)
		ref := make([]string, 40)
		for i := range pred {
			pred[i] = "A"
			ref[i] = []string{"A", "B"}[i%2]
		}
		got, err := e.GradeDistributionComparison(series("model", pred...), series("reference", ref...))
		require.NoError(t, err)
		assert.InDelta(t, 40.0, got.ChiSquare, 1e-12)
		assert.Less(t, got.PValue, 0.05)
		assert.False(t, got.Similar)
	})
}

func TestAccuracyEngine_Evaluate(t *testing.T) {
	pred := series("model", "A", "B", "B", "C", "D/E", "A", "C", "B", "A", "C", "B", "D/E")
	ref := series("reference", "A", "B", "C", "C", "D/E", "B", "C", "B", "A", "D/E", "B", "C")

	t.Run("without bootstrap", func(t *testing.T) {
		e := newTestAccuracyEngine(t, nil)
		got, err := e.Evaluate(pred, ref)
		require.NoError(t, err)

		assert.Equal(t, "model", got.Rater)
		require.NotNil(t, got.WeightedKappa)
		assert.Equal(t, domain.WeightingQuadratic, got.WeightedKappa.Weighting)
		assert.Equal(t, "reference", got.WeightedKappa.RaterA)
		assert.Nil(t, got.Calibration)
		assert.GreaterOrEqual(t, got.RMSE.Value, got.Error.MAE.Value)
		assert.Equal(t, got.Error.MAE.SampleSize, got.Confusion.Matrix.Total())
	})

	t.Run("bootstrap is reproducible", func(t *testing.T) {
		e := newTestAccuracyEngine(t, func(c *AccuracyConfig) {
			c.Bootstrap = BootstrapConfig{Iterations: 300, Seed: 17}
		})
		first, err := e.Evaluate(pred, ref)
		require.NoError(t, err)
		second, err := e.Evaluate(pred, ref)
		require.NoError(t, err)

		require.NotNil(t, first.Calibration)
		assert.Equal(t, first.Calibration, second.Calibration)
		assert.Equal(t, uint64(17), first.Calibration.Seed)

		mae := first.Calibration.MAE
		require.NotNil(t, mae.CI)
		assert.Equal(t, DefaultConfidence, mae.CI.Level)
		assert.InDelta(t, first.Error.MAE.Value, mae.Value, 1e-12)
		assert.True(t, mae.CI.Contains(mae.Value), "interval %+v should cover %v", *mae.CI, mae.Value)
		assert.InDelta(t, first.WeightedKappa.Kappa.Value, first.Calibration.WeightedKappa.Value, 1e-12)
	})

	t.Run("kappa interval follows the configured confidence", func(t *testing.T) {
		tests := []struct {
			name       string
			confidence float64
			want       float64
		}{
			{"unset", 0, DefaultConfidence},
			{"narrow", 0.8, 0.8},
			{"wide", 0.99, 0.99},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e := newTestAccuracyEngine(t, func(c *AccuracyConfig) {
					c.KappaWeighting = domain.WeightingNone
					c.Bootstrap.Confidence = tt.confidence
				})
				got, err := e.Evaluate(pred, ref)
				require.NoError(t, err)
				require.NotNil(t, got.WeightedKappa)
				require.NotNil(t, got.WeightedKappa.Kappa.CI)
				assert.Equal(t, tt.want, got.WeightedKappa.Kappa.CI.Level)
			})
		}
	})

	t.Run("single overlapping pair skips kappa", func(t *testing.T) {
		e := newTestAccuracyEngine(t, nil)
		got, err := e.Evaluate(series("model", "A", ""), series("reference", "B", "C"))
		require.NoError(t, err)
		assert.Nil(t, got.WeightedKappa)
		assert.Equal(t, 1.0, got.Error.MAE.Value)
	})
}

func TestNewAccuracyEngine(t *testing.T) {
	scale := domain.DefaultGradeScale()

	tests := []struct {
		name   string
		mutate func(*AccuracyConfig)
	}{
		{"top_n zero", func(c *AccuracyConfig) { c.TopN = 0 }},
		{"unknown averaging", func(c *AccuracyConfig) { c.Averaging = "samples" }},
		{"significance out of range", func(c *AccuracyConfig) { c.SignificanceLevel = 1.5 }},
		{"negative iterations", func(c *AccuracyConfig) { c.Bootstrap.Iterations = -1 }},
		{"bootstrap confidence out of range", func(c *AccuracyConfig) { c.Bootstrap.Confidence = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAccuracyConfig()
			tt.mutate(&cfg)
			_, err := NewAccuracyEngine("accuracy", scale, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}

	t.Run("from config with nested bootstrap", func(t *testing.T) {
		e, err := NewAccuracyEngineFromConfig("accuracy", map[string]any{
			"averaging": "macro",
			"bootstrap": map[string]any{"iterations": 100, "seed": 5},
		}, scale)
		require.NoError(t, err)
		assert.Equal(t, domain.AveragingMacro, e.config.Averaging)
		assert.Equal(t, 100, e.config.Bootstrap.Iterations)
		assert.Equal(t, uint64(5), e.config.Bootstrap.Seed)
		assert.Equal(t, 5, e.config.TopN)
	})

	t.Run("calibrate requires iterations", func(t *testing.T) {
		e := newTestAccuracyEngine(t, nil)
		_, err := e.Calibrate(series("m", "A", "B"), series("r", "A", "B"))
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}
