package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/infrastructure/engines"
	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

// AnalysisPlan is a validated configuration together with the grade scale
// and engines built from it. Plans are immutable and may be shared between
// goroutines.
type AnalysisPlan struct {
	Config      AnalysisConfig
	Scale       *domain.GradeScale
	Agreement   *engines.AgreementEngine
	Consistency *engines.ConsistencyEngine
	Accuracy    *engines.AccuracyEngine
}

// ConfigLoader provides YAML configuration parsing, validation, and caching
// for analysis configurations, turning declarative YAML into ready-to-run
// analysis plans.
// Use ConfigLoader to load plans from files or readers while benefiting
// from SHA256-based caching and comprehensive validation.
type ConfigLoader struct {
	validator *validator.Validate
	// cache stores compiled plans indexed by the SHA256 hash of the
	// normalized configuration.
	cache   map[string]*AnalysisPlan
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines request
	// the same configuration simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with an empty cache.
// NewConfigLoader returns an error if validator registration fails.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()

	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*AnalysisPlan),
	}, nil
}

// LoadFromFile loads and compiles an analysis plan from a YAML file.
// LoadFromFile returns an error if file reading, parsing, validation,
// or engine construction fails.
func (cl *ConfigLoader) LoadFromFile(path string) (*AnalysisPlan, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError(path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(data)
}

// LoadFromReader loads and compiles an analysis plan from an io.Reader.
// It reads all data into memory and performs the same validation as
// LoadFromFile.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*AnalysisPlan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(data)
}

// load parses data, then compiles it at most once per distinct normalized
// configuration.
func (cl *ConfigLoader) load(data []byte) (*AnalysisPlan, error) {
	// Parse first so formatting differences do not defeat the cache.
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return cl.compile(config)
}

// Compile validates an in-memory configuration and builds its plan, sharing
// the cache used for YAML input.
func (cl *ConfigLoader) Compile(config AnalysisConfig) (*AnalysisPlan, error) {
	return cl.compile(&config)
}

func (cl *ConfigLoader) compile(config *AnalysisConfig) (*AnalysisPlan, error) {
	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		// Check the cache inside the flight so a finished compile is reused.
		if plan, ok := cl.getCachedPlan(hash); ok {
			return plan, nil
		}

		if err := cl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		plan, err := buildPlan(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build analysis plan: %w", err)
		}

		cl.cachePlan(hash, plan)

		return plan, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*AnalysisPlan), nil
}

// parseYAML decodes data over DefaultAnalysisConfig using strict decoding,
// so unknown fields are reported instead of silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*AnalysisConfig, error) {
	config := DefaultAnalysisConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig runs struct tag validation, including the custom and
// struct-level validators.
func (cl *ConfigLoader) validateConfig(config *AnalysisConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	return nil
}

// buildPlan constructs the grade scale and the three engines.
func buildPlan(config *AnalysisConfig) (*AnalysisPlan, error) {
	scale, err := config.GradeScale()
	if err != nil {
		return nil, err
	}

	agreement, err := engines.NewAgreementEngine("agreement", scale, config.Agreement)
	if err != nil {
		return nil, fmt.Errorf("failed to create agreement engine: %w", err)
	}
	consistency, err := engines.NewConsistencyEngine("consistency", scale, config.Consistency)
	if err != nil {
		return nil, fmt.Errorf("failed to create consistency engine: %w", err)
	}
	accuracy, err := engines.NewAccuracyEngine("accuracy", scale, config.Accuracy)
	if err != nil {
		return nil, fmt.Errorf("failed to create accuracy engine: %w", err)
	}

	return &AnalysisPlan{
		Config:      *config,
		Scale:       scale,
		Agreement:   agreement,
		Consistency: consistency,
		Accuracy:    accuracy,
	}, nil
}

// calculateConfigHash hashes the re-encoded configuration so that
// equivalent YAML documents share a cache entry.
func (cl *ConfigLoader) calculateConfigHash(config *AnalysisConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCachedPlan(hash string) (*AnalysisPlan, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	plan, ok := cl.cache[hash]
	return plan, ok
}

func (cl *ConfigLoader) cachePlan(hash string, plan *AnalysisPlan) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = plan
}

// ClearCache drops every compiled plan.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*AnalysisPlan)
}

// NewAggregator creates a MetricsAggregator wired to the plan's engines,
// thresholds and worker limit.
func (p *AnalysisPlan) NewAggregator(deps AggregatorDeps) (*MetricsAggregator, error) {
	return NewMetricsAggregator(AggregatorConfig{
		Name:        p.Config.Metadata.Name,
		Scale:       p.Scale,
		Agreement:   p.Agreement,
		Consistency: p.Consistency,
		Accuracy:    p.Accuracy,
		Thresholds:  p.Config.Assessment,
		Workers:     p.Config.Execution.WorkerLimit(),
	}, deps)
}
