// Package ratings provides ports.RatingSource implementations that read
// rubric ratings from documents and SQLite databases.
package ratings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.RatingSource = (*FileSource)(nil)

// Format is the encoding of a ratings document.
type Format string

// Supported document formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the on-disk layout of a ratings file:
//
//	{"criteria": [{"criterion": "thesis",
//	               "reference": ["A", "B"],
//	               "raters": [{"rater": "gpt", "trials": [["A", "B"], ["A", null]]}]}]}
//
// A null (JSON) or ~ (YAML) grade is a missing rating.
type Document struct {
	Criteria []CriterionDocument `json:"criteria" yaml:"criteria"`
}

// CriterionDocument holds the ratings of one criterion.
type CriterionDocument struct {
	Criterion string          `json:"criterion" yaml:"criterion"`
	Reference []*string       `json:"reference,omitempty" yaml:"reference,omitempty"`
	Raters    []RaterDocument `json:"raters" yaml:"raters"`
}

// RaterDocument holds the trials of one rater.
type RaterDocument struct {
	Rater  string      `json:"rater" yaml:"rater"`
	Trials [][]*string `json:"trials" yaml:"trials"`
}

// FileSource serves ratings from a JSON or YAML document that is decoded
// once at construction. It is safe for concurrent use.
type FileSource struct {
	name     string
	order    []string
	criteria map[string]domain.CriterionRatings
}

// NewFileSource reads the document at path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func NewFileSource(path string) (*FileSource, error) {
	clean := filepath.Clean(path)
	f, err := os.Open(clean)
	if err != nil {
		return nil, ports.NewSourceError(clean, "", fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}
	defer f.Close()

	format := FormatJSON
	if ext := strings.ToLower(filepath.Ext(clean)); ext == ".yaml" || ext == ".yml" {
		format = FormatYAML
	}
	return NewFileSourceFromReader(clean, f, format)
}

// NewFileSourceFromReader decodes a document from r. name identifies the
// source in errors. Unknown fields are rejected.
func NewFileSourceFromReader(name string, r io.Reader, format Format) (*FileSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ports.NewSourceError(name, "", fmt.Errorf("%w: %w", ports.ErrSourceUnavailable, err))
	}

	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		return nil, fmt.Errorf("%w: unknown ratings format %q", domain.ErrInvalidConfiguration, format)
	}
	if err != nil {
		return nil, ports.NewSourceError(name, "", fmt.Errorf("%w: %w", ports.ErrMalformedRatings, err))
	}

	return newFileSource(name, doc)
}

func newFileSource(name string, doc Document) (*FileSource, error) {
	s := &FileSource{
		name:     name,
		order:    make([]string, 0, len(doc.Criteria)),
		criteria: make(map[string]domain.CriterionRatings, len(doc.Criteria)),
	}
	for i, c := range doc.Criteria {
		if c.Criterion == "" {
			return nil, ports.NewSourceError(name, "",
				fmt.Errorf("%w: criterion %d has no name", ports.ErrMalformedRatings, i))
		}
		if _, dup := s.criteria[c.Criterion]; dup {
			return nil, ports.NewSourceError(name, c.Criterion,
				fmt.Errorf("%w: duplicate criterion", ports.ErrMalformedRatings))
		}
		s.order = append(s.order, c.Criterion)
		s.criteria[c.Criterion] = c.toDomain()
	}
	return s, nil
}

func (c CriterionDocument) toDomain() domain.CriterionRatings {
	out := domain.CriterionRatings{
		Criterion: c.Criterion,
		Raters:    make([]domain.RaterTrials, len(c.Raters)),
	}
	if c.Reference != nil {
		out.Reference = &domain.RatingSeries{Rater: "reference", Grades: grades(c.Reference)}
	}
	for i, r := range c.Raters {
		trials := make([]domain.RatingSeries, len(r.Trials))
		for t, g := range r.Trials {
			trials[t] = domain.RatingSeries{Grades: grades(g)}
		}
		out.Raters[i] = domain.RaterTrials{Rater: r.Rater, Trials: trials}
	}
	return out
}

func grades(in []*string) []string {
	out := make([]string, len(in))
	for i, g := range in {
		if g != nil {
			out[i] = *g
		}
	}
	return out
}

// Criteria implements ports.RatingSource, listing criteria in document order.
func (s *FileSource) Criteria(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Load implements ports.RatingSource. The returned ratings share no memory
// with the source.
func (s *FileSource) Load(ctx context.Context, criterion string) (domain.CriterionRatings, error) {
	if err := ctx.Err(); err != nil {
		return domain.CriterionRatings{}, err
	}
	c, ok := s.criteria[criterion]
	if !ok {
		return domain.CriterionRatings{}, ports.NewSourceError(s.name, criterion, ports.ErrCriterionNotFound)
	}
	return cloneCriterion(c), nil
}

func cloneCriterion(c domain.CriterionRatings) domain.CriterionRatings {
	out := domain.CriterionRatings{
		Criterion: c.Criterion,
		Raters:    make([]domain.RaterTrials, len(c.Raters)),
	}
	if c.Reference != nil {
		ref := cloneSeries(*c.Reference)
		out.Reference = &ref
	}
	for i, r := range c.Raters {
		trials := make([]domain.RatingSeries, len(r.Trials))
		for t, s := range r.Trials {
			trials[t] = cloneSeries(s)
		}
		out.Raters[i] = domain.RaterTrials{Rater: r.Rater, Trials: trials}
	}
	return out
}

func cloneSeries(s domain.RatingSeries) domain.RatingSeries {
	g := make([]string, len(s.Grades))
	copy(g, s.Grades)
	return domain.RatingSeries{Rater: s.Rater, Grades: g}
}

// NewDocument converts criteria into their document form, writing missing
// grades as null.
func NewDocument(criteria []domain.CriterionRatings) Document {
	doc := Document{Criteria: make([]CriterionDocument, len(criteria))}
	for i, c := range criteria {
		cd := CriterionDocument{Criterion: c.Criterion, Raters: make([]RaterDocument, len(c.Raters))}
		if c.Reference != nil {
			cd.Reference = pointers(c.Reference.Grades)
		}
		for j, r := range c.Raters {
			trials := make([][]*string, len(r.Trials))
			for t, s := range r.Trials {
				trials[t] = pointers(s.Grades)
			}
			cd.Raters[j] = RaterDocument{Rater: r.Rater, Trials: trials}
		}
		doc.Criteria[i] = cd
	}
	return doc
}

func pointers(in []string) []*string {
	out := make([]*string, len(in))
	for i := range in {
		if in[i] != domain.MissingGrade {
			out[i] = &in[i]
		}
	}
	return out
}
