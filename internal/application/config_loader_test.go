package application

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

const validAnalysisYAML = `version: "1.0.0"
metadata:
  name: essay-reliability
  description: Reliability of the essay grading pilot
  tags: [essays, pilot]
scale:
  - {label: A, value: 4}
  - {label: B, value: 3}
  - {label: C, value: 2}
  - {label: D/E, value: 1}
agreement:
  weighting: linear
  level: ordinal
  confidence: 0.9
consistency:
  icc_form: "3,k"
  confidence: 0.95
accuracy:
  averaging: macro
  top_n: 3
  significance_level: 0.01
  kappa_weighting: quadratic
  bootstrap:
    iterations: 200
    seed: 7
assessment:
  agreement_strong: 0.7
  agreement_acceptable: 0.5
  consistency_strong: 0.8
  consistency_acceptable: 0.6
  accuracy_strong_mae: 0.25
  accuracy_acceptable_mae: 0.75
execution:
  workers: 4
`

func newTestLoader(t *testing.T) *ConfigLoader {
	t.Helper()
	cl, err := NewConfigLoader()
	require.NoError(t, err)
	return cl
}

func TestConfigLoader_LoadFromReader(t *testing.T) {
	cl := newTestLoader(t)

	plan, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
	require.NoError(t, err)

	assert.Equal(t, "essay-reliability", plan.Config.Metadata.Name)
	assert.Equal(t, []string{"A", "B", "C", "D/E"}, plan.Scale.OrderedCategories())
	assert.Equal(t, domain.WeightingLinear, plan.Config.Agreement.Weighting)
	assert.Equal(t, domain.ICC3K, plan.Config.Consistency.ICCForm)
	assert.Equal(t, domain.AveragingMacro, plan.Config.Accuracy.Averaging)
	assert.Equal(t, 200, plan.Config.Accuracy.Bootstrap.Iterations)
	assert.Equal(t, uint64(7), plan.Config.Accuracy.Bootstrap.Seed)
	assert.Equal(t, 0.7, plan.Config.Assessment.AgreementStrong)
	assert.Equal(t, 4, plan.Config.Execution.WorkerLimit())

	require.NotNil(t, plan.Agreement)
	require.NotNil(t, plan.Consistency)
	require.NotNil(t, plan.Accuracy)
	assert.NoError(t, plan.Agreement.Validate())
	assert.NoError(t, plan.Consistency.Validate())
	assert.NoError(t, plan.Accuracy.Validate())
}

func TestConfigLoader_Defaults(t *testing.T) {
	cl := newTestLoader(t)

	plan, err := cl.LoadFromReader(strings.NewReader("version: \"1.0.0\"\nmetadata:\n  name: minimal\n"))
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultGradeScale().OrderedCategories(), plan.Scale.OrderedCategories())
	assert.Equal(t, domain.WeightingNone, plan.Config.Agreement.Weighting)
	assert.Equal(t, domain.LevelOrdinal, plan.Config.Agreement.Level)
	assert.Equal(t, domain.ICC21, plan.Config.Consistency.ICCForm)
	assert.Equal(t, domain.AveragingWeighted, plan.Config.Accuracy.Averaging)
	assert.Equal(t, 5, plan.Config.Accuracy.TopN)
	assert.Zero(t, plan.Config.Accuracy.Bootstrap.Iterations)
	assert.Equal(t, DefaultAssessmentConfig(), plan.Config.Assessment)
	assert.Positive(t, plan.Config.Execution.WorkerLimit())
}

func TestConfigLoader_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\ncolour: red\n",
			wantErr: "field colour not found",
		},
		{
			name:    "bad version",
			yaml:    "version: one\nmetadata:\n  name: x\n",
			wantErr: "semver",
		},
		{
			name:    "missing name",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  description: nameless\n",
			wantErr: "Name",
		},
		{
			name:    "unknown icc form",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nconsistency:\n  icc_form: \"4,1\"\n",
			wantErr: "iccform",
		},
		{
			name:    "unknown weighting",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nagreement:\n  weighting: cubic\n",
			wantErr: "oneof",
		},
		{
			name:    "single grade",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nscale:\n  - {label: pass, value: 1}\n",
			wantErr: "min",
		},
		{
			name:    "duplicate grade label",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nscale:\n  - {label: A, value: 2}\n  - {label: A, value: 1}\n",
			wantErr: "unique",
		},
		{
			name:    "duplicate grade value",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nscale:\n  - {label: A, value: 1}\n  - {label: B, value: 1}\n",
			wantErr: "unique",
		},
		{
			name: "unordered scale",
			yaml: "version: \"1.0.0\"\nmetadata:\n  name: x\nscale:\n" +
				"  - {label: A, value: 3}\n  - {label: C, value: 1}\n  - {label: B, value: 2}\n",
			wantErr: "gradeorder",
		},
		{
			name: "ratio level with a zero grade",
			yaml: "version: \"1.0.0\"\nmetadata:\n  name: x\nagreement:\n  level: ratio\nscale:\n" +
				"  - {label: fail, value: 0}\n  - {label: pass, value: 1}\n",
			wantErr: "ratioscale",
		},
		{
			name:    "inverted agreement thresholds",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nassessment:\n  agreement_strong: 0.3\n  agreement_acceptable: 0.5\n",
			wantErr: "gtefield",
		},
		{
			name:    "inverted accuracy thresholds",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nassessment:\n  accuracy_strong_mae: 2\n",
			wantErr: "ltefield",
		},
		{
			name:    "negative workers",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\nexecution:\n  workers: -1\n",
			wantErr: "Workers",
		},
		{
			name:    "bootstrap confidence of one",
			yaml:    "version: \"1.0.0\"\nmetadata:\n  name: x\naccuracy:\n  bootstrap:\n    confidence: 1\n",
			wantErr: "Confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := newTestLoader(t)
			_, err := cl.LoadFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigLoader_AscendingScale(t *testing.T) {
	cl := newTestLoader(t)

	plan, err := cl.LoadFromReader(strings.NewReader("version: \"1.0.0\"\nmetadata:\n  name: x\nscale:\n" +
		"  - {label: low, value: 1}\n  - {label: mid, value: 2}\n  - {label: high, value: 3}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "mid", "high"}, plan.Scale.OrderedCategories())
}

func TestConfigLoader_Cache(t *testing.T) {
	cl := newTestLoader(t)

	first, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
	require.NoError(t, err)

	// Formatting differences normalize to the same configuration.
	reformatted := strings.ReplaceAll(validAnalysisYAML, "tags: [essays, pilot]", "tags:\n    - essays\n    - pilot")
	second, err := cl.LoadFromReader(strings.NewReader(reformatted))
	require.NoError(t, err)
	assert.Same(t, first, second)

	cl.ClearCache()
	third, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.Config, third.Config)
}

func TestConfigLoader_Compile(t *testing.T) {
	cl := newTestLoader(t)

	fromYAML, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
	require.NoError(t, err)

	// An identical in-memory config hits the same cache entry.
	compiled, err := cl.Compile(fromYAML.Config)
	require.NoError(t, err)
	assert.Same(t, fromYAML, compiled)

	_, err = cl.Compile(DefaultAnalysisConfig())
	require.Error(t, err, "defaults carry no metadata name")

	cfg := DefaultAnalysisConfig()
	cfg.Metadata.Name = "defaults"
	plan, err := cl.Compile(cfg)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultGradeScale().OrderedCategories(), plan.Scale.OrderedCategories())
}

func TestConfigLoader_ConcurrentLoads(t *testing.T) {
	cl := newTestLoader(t)

	const goroutines = 16
	plans := make([]*AnalysisPlan, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
			assert.NoError(t, err)
			plans[i] = plan
		}()
	}
	wg.Wait()

	for _, p := range plans[1:] {
		assert.Same(t, plans[0], p)
	}
}

func TestConfigLoader_LoadFromFile(t *testing.T) {
	cl := newTestLoader(t)

	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validAnalysisYAML), 0o600))

	plan, err := cl.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "essay-reliability", plan.Config.Metadata.Name)

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cl.LoadFromFile(missing)
	require.ErrorIs(t, err, ports.ErrConfigNotFound)
	var cfgErr *ports.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, missing, cfgErr.ConfigKey)
}

func TestAnalysisPlan_NewAggregator(t *testing.T) {
	cl := newTestLoader(t)
	plan, err := cl.LoadFromReader(strings.NewReader(validAnalysisYAML))
	require.NoError(t, err)

	agg, err := plan.NewAggregator(AggregatorDeps{})
	require.NoError(t, err)
	assert.Equal(t, "essay-reliability", agg.name)
	assert.Equal(t, 4, agg.workers)
	assert.Equal(t, plan.Config.Assessment, agg.thresholds)
}
