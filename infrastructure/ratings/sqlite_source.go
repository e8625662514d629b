package ratings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.RatingSource = (*SQLiteSource)(nil)

// ReferenceRater is the rater name under which ground-truth grades are
// stored in the ratings table.
const ReferenceRater = "reference"

// Schema is the ratings table. A NULL grade is a missing rating.
const Schema = `
CREATE TABLE IF NOT EXISTS ratings (
	criterion TEXT    NOT NULL,
	item_id   INTEGER NOT NULL,
	rater     TEXT    NOT NULL,
	trial     INTEGER NOT NULL DEFAULT 0,
	grade     TEXT,
	PRIMARY KEY (criterion, rater, trial, item_id)
);
CREATE INDEX IF NOT EXISTS idx_ratings_criterion ON ratings (criterion);
`

// SQLiteSource reads ratings from a SQLite database holding the ratings
// table described by Schema.
type SQLiteSource struct {
	db   *sql.DB
	name string
	own  bool
}

// OpenSQLiteSource opens the database at path and checks it is reachable.
// The caller must Close the returned source.
func OpenSQLiteSource(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ports.NewSourceError(path, "", fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ports.NewSourceError(path, "", fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}
	return &SQLiteSource{db: db, name: path, own: true}, nil
}

// NewSQLiteSource wraps an already open database. Close leaves db open.
func NewSQLiteSource(db *sql.DB, name string) *SQLiteSource {
	return &SQLiteSource{db: db, name: name}
}

// Close releases the database if the source opened it.
func (s *SQLiteSource) Close() error {
	if !s.own {
		return nil
	}
	return s.db.Close()
}

// Criteria implements ports.RatingSource, listing criteria alphabetically.
func (s *SQLiteSource) Criteria(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT criterion FROM ratings ORDER BY criterion`)
	if err != nil {
		return nil, ports.NewSourceError(s.name, "", fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, ports.NewSourceError(s.name, "", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewSourceError(s.name, "", err)
	}
	return out, nil
}

type cell struct {
	item  int
	grade sql.NullString
}

// Load implements ports.RatingSource. Items are the distinct item_ids of the
// criterion in ascending order, so gaps between ids do not create items. An
// id a rater skipped is a missing grade for that rater. Raters are returned
// alphabetically and trials by number.
func (s *SQLiteSource) Load(ctx context.Context, criterion string) (domain.CriterionRatings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, rater, trial, grade
		FROM ratings
		WHERE criterion = ?
		ORDER BY rater, trial, item_id`, criterion)
	if err != nil {
		return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion,
			fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}
	defer rows.Close()

	// rater -> trial -> cells
	trials := make(map[string]map[int][]cell)
	seen := make(map[int]struct{})
	for rows.Next() {
		var (
			c     cell
			rater string
			trial int
		)
		if err := rows.Scan(&c.item, &rater, &trial, &c.grade); err != nil {
			return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion, err)
		}
		seen[c.item] = struct{}{}

		if trials[rater] == nil {
			trials[rater] = make(map[int][]cell)
		}
		trials[rater][trial] = append(trials[rater][trial], c)
	}
	if err := rows.Err(); err != nil {
		return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion, err)
	}
	if len(seen) == 0 {
		return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion, ports.ErrCriterionNotFound)
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	position := make(map[int]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	series := func(cells []cell) domain.RatingSeries {
		g := make([]string, len(ids))
		for _, c := range cells {
			if c.grade.Valid {
				g[position[c.item]] = c.grade.String
			}
		}
		return domain.RatingSeries{Grades: g}
	}

	out := domain.CriterionRatings{Criterion: criterion}
	if ref, ok := trials[ReferenceRater]; ok {
		if len(ref) > 1 {
			return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion,
				fmt.Errorf("%w: reference has %d trials", ports.ErrMalformedRatings, len(ref)))
		}
		for _, cells := range ref {
			r := series(cells)
			r.Rater = ReferenceRater
			out.Reference = &r
		}
		delete(trials, ReferenceRater)
	}

	for _, rater := range sortedRaters(trials) {
		nums := make([]int, 0, len(trials[rater]))
		for n := range trials[rater] {
			nums = append(nums, n)
		}
		sort.Ints(nums)

		rt := domain.RaterTrials{Rater: rater, Trials: make([]domain.RatingSeries, len(nums))}
		for i, n := range nums {
			rt.Trials[i] = series(trials[rater][n])
		}
		out.Raters = append(out.Raters, rt)
	}
	return out, nil
}

func sortedRaters(m map[string]map[int][]cell) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WriteSQLite creates the ratings table in db if needed and stores criteria
// in one transaction. Item ids start at zero; missing grades are stored as
// NULL. Existing rows for the same key are replaced.
func WriteSQLite(ctx context.Context, db *sql.DB, criteria []domain.CriterionRatings) (err error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create ratings schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ratings transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ratings (criterion, item_id, rater, trial, grade)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ratings insert: %w", err)
	}
	defer stmt.Close()

	insert := func(criterion, rater string, trial int, s domain.RatingSeries) error {
		for i, g := range s.Grades {
			grade := sql.NullString{String: g, Valid: g != domain.MissingGrade}
			if _, err := stmt.ExecContext(ctx, criterion, i, rater, trial, grade); err != nil {
				return fmt.Errorf("insert %s/%s trial %d item %d: %w", criterion, rater, trial, i, err)
			}
		}
		return nil
	}

	for _, c := range criteria {
		if c.Reference != nil {
			if err = insert(c.Criterion, ReferenceRater, 0, *c.Reference); err != nil {
				return err
			}
		}
		for _, r := range c.Raters {
			if r.Rater == ReferenceRater {
				return fmt.Errorf("%w: rater name %q is reserved", domain.ErrInvalidConfiguration, ReferenceRater)
			}
			for t, s := range r.Trials {
				if err = insert(c.Criterion, r.Rater, t, s); err != nil {
					return err
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ratings: %w", err)
	}
	return nil
}
