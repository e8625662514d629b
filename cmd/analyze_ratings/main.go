// Command analyze_ratings measures inter-rater reliability for a set of
// rubric ratings and writes a JSON report plus a plain-text summary.
//
// Usage:
//
//	analyze_ratings -ratings ratings.json [-config analysis.yaml] [-output report.json]
//	analyze_ratings -sqlite ratings.db -metrics metrics.prom
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-concord/infrastructure/middleware"
	"github.com/ahrav/go-concord/infrastructure/ratings"
	"github.com/ahrav/go-concord/internal/application"
	"github.com/ahrav/go-concord/internal/ports"
)

type options struct {
	configPath  string
	ratingsPath string
	sqlitePath  string
	outputPath  string
	metricsPath string
	name        string
	quiet       bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Analysis config YAML (defaults apply when empty)")
	flag.StringVar(&opts.ratingsPath, "ratings", "", "Ratings document (.json, .yaml or .yml)")
	flag.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite database with a ratings table")
	flag.StringVar(&opts.outputPath, "output", "-", "Report JSON destination, - for stdout")
	flag.StringVar(&opts.metricsPath, "metrics", "", "Write Prometheus metrics in text format to this file")
	flag.StringVar(&opts.name, "name", "ratings", "Report name when no config is given")
	flag.BoolVar(&opts.quiet, "quiet", false, "Skip the text summary on stderr")
	flag.BoolVar(&opts.verbose, "v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	plan, err := loadPlan(opts)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeSrc()

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)

	agg, err := plan.NewAggregator(application.AggregatorDeps{
		Logger:   logger,
		Observer: middleware.NewOTelObserver(metrics),
	})
	if err != nil {
		return fmt.Errorf("build aggregator: %w", err)
	}

	logger.Info("analysing ratings", "config", plan.Config.Metadata.Name, "workers", plan.Config.Execution.WorkerLimit())
	report, err := agg.AnalyzeSource(ctx, src)
	if err != nil {
		return err
	}
	logger.Info("analysis complete", "report_id", report.ID, "criteria", len(report.Criteria))

	if err := writeReport(opts.outputPath, report); err != nil {
		return err
	}
	if !opts.quiet {
		if err := application.RenderSummary(os.Stderr, report); err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
	}
	if opts.metricsPath != "" {
		if err := prometheus.WriteToTextfile(opts.metricsPath, reg); err != nil {
			return ports.NewMetricsError("all", "write_textfile", err)
		}
		logger.Debug("metrics written", "path", opts.metricsPath)
	}
	return nil
}

func loadPlan(opts options) (*application.AnalysisPlan, error) {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	if opts.configPath != "" {
		plan, err := loader.LoadFromFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
		return plan, nil
	}

	cfg := application.DefaultAnalysisConfig()
	cfg.Metadata.Name = opts.name
	return loader.Compile(cfg)
}

func openSource(ctx context.Context, opts options) (ports.RatingSource, func(), error) {
	switch {
	case opts.ratingsPath != "" && opts.sqlitePath != "":
		return nil, nil, errors.New("use only one of -ratings and -sqlite")
	case opts.ratingsPath != "":
		src, err := ratings.NewFileSource(opts.ratingsPath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	case opts.sqlitePath != "":
		src, err := ratings.OpenSQLiteSource(ctx, opts.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	default:
		return nil, nil, errors.New("one of -ratings or -sqlite is required")
	}
}

func writeReport(path string, report any) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
