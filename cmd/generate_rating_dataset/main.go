// Command generate_rating_dataset writes a reproducible synthetic rating
// dataset as a JSON document or a SQLite database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-concord/infrastructure/ratings"
	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func main() {
	var (
		items      = flag.Int("items", 30, "Number of graded items per criterion")
		trials     = flag.Int("trials", 3, "Trials per rater")
		criteria   = flag.String("criteria", "thesis,evidence,organization", "Comma-separated criterion names")
		seed       = flag.Uint64("seed", 0, "Random seed, 0 for time-based")
		noRef      = flag.Bool("no-reference", false, "Omit the reference grades")
		outputPath = flag.String("output", "testdata/ratings/sample_ratings.json", "Output path; .db or .sqlite writes SQLite")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	cfg := testutils.DefaultDatasetConfig()
	cfg.Items = *items
	cfg.Trials = *trials
	cfg.Criteria = strings.Split(*criteria, ",")
	cfg.WithReference = !*noRef

	dataset, err := testutils.GenerateRatingDataset(cfg, domain.DefaultGradeScale(), *seed)
	if err != nil {
		log.Fatalf("Failed to generate dataset: %v", err)
	}

	if err := save(*outputPath, dataset.Criteria); err != nil {
		log.Fatalf("Failed to save dataset: %v", err)
	}

	stats := testutils.ComputeDatasetStatistics(dataset)

	fmt.Printf("Generated rating dataset:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Seed: %d\n", *seed)
	fmt.Printf("- Criteria: %d\n", stats.Criteria)
	fmt.Printf("- Raters: %d x %d trials\n", stats.Raters, stats.Trials)
	fmt.Printf("- Items per criterion: %d\n", stats.Items)
	fmt.Printf("- Grade counts: %v\n", stats.GradeCounts)
	fmt.Printf("- Missing: %.1f%%\n", 100*stats.MissingRate())
}

func save(path string, criteria []domain.CriterionRatings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return err
		}
		defer db.Close()
		return ratings.WriteSQLite(context.Background(), db, criteria)
	default:
		data, err := json.MarshalIndent(ratings.NewDocument(criteria), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal dataset: %w", err)
		}
		return os.WriteFile(path, data, 0o600)
	}
}
