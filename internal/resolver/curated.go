package resolver

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/intent"
)

//go:embed datasets/*.yaml
var builtinDatasets embed.FS

// Dataset is a hand-verified answer table for one narrow topic shape.
type Dataset struct {
	ID          string          `yaml:"id"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Category    intent.Category `yaml:"category"`
	// Pattern must match the raw topic for the dataset to be served.
	Pattern string `yaml:"pattern"`
	// Limit, when set, must equal the intent's per-season limit.
	Limit int `yaml:"limit"`
	// FilterYears keeps only records inside the intent's year range.
	FilterYears bool            `yaml:"filter_years"`
	Records     []DatasetRecord `yaml:"records"`

	pattern *regexp.Regexp
}

// DatasetRecord is one row of a curated dataset.
type DatasetRecord struct {
	Player string  `yaml:"player"`
	Team   string  `yaml:"team"`
	Year   int     `yaml:"year"`
	Value  float64 `yaml:"value"`
}

func (d *Dataset) compile() error {
	if d.ID == "" {
		return fmt.Errorf("dataset id is required")
	}
	if d.Pattern == "" {
		return fmt.Errorf("dataset %s: pattern is required", d.ID)
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return fmt.Errorf("dataset %s: compile pattern: %w", d.ID, err)
	}
	d.pattern = re
	return nil
}

func (d *Dataset) matches(q Query) bool {
	if d.pattern == nil || q.Intent.Category != d.Category {
		return false
	}
	if d.Limit > 0 && q.Intent.Limit != d.Limit {
		return false
	}
	return d.pattern.MatchString(q.Topic)
}

func (d *Dataset) answers(q Query) answer.Set {
	records := make([]answer.Record, 0, len(d.Records))
	for _, r := range d.Records {
		if d.FilterYears && !q.Intent.Years.Contains(r.Year) {
			continue
		}
		records = append(records, answer.Record{
			StatValue: r.Value,
			Player:    r.Player,
			Team:      answer.TeamCode(r.Year, answer.CanonicalTeam(r.Team)),
			Year:      fmt.Sprintf("%04d", r.Year),
		})
	}
	return answer.NewSet(records)
}

// LoadDatasets reads every *.yaml and *.yml file under fsys. Files that fail
// to parse are skipped with a warning; a dataset with a bad pattern is an
// error.
func LoadDatasets(fsys fs.FS) ([]Dataset, error) {
	var datasets []Dataset
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		var ds Dataset
		if err := yaml.Unmarshal(data, &ds); err != nil {
			slog.Warn("skipping invalid dataset YAML", "path", p, "error", err)
			return nil
		}
		if ds.ID == "" {
			return nil // Not a dataset file
		}
		if err := ds.compile(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		datasets = append(datasets, ds)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	return datasets, nil
}

// BuiltinDatasets returns the datasets compiled into the binary.
func BuiltinDatasets() ([]Dataset, error) {
	sub, err := fs.Sub(builtinDatasets, "datasets")
	if err != nil {
		return nil, err
	}
	return LoadDatasets(sub)
}

// CuratedStrategy serves hand-verified datasets for topics they exactly fit.
type CuratedStrategy struct {
	datasets []Dataset
}

// NewCuratedStrategy loads the built-in datasets plus any found in extraDir.
// A dataset in extraDir replaces a built-in one with the same ID.
func NewCuratedStrategy(extraDir string) (*CuratedStrategy, error) {
	datasets, err := BuiltinDatasets()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extraDir) != "" {
		extra, err := LoadDatasets(os.DirFS(extraDir))
		if err != nil {
			return nil, err
		}
		datasets = mergeDatasets(datasets, extra)
	}
	slog.Info("curated datasets loaded", "datasets", len(datasets))
	return &CuratedStrategy{datasets: datasets}, nil
}

// NewCuratedStrategyFrom builds a strategy from already loaded datasets.
func NewCuratedStrategyFrom(datasets []Dataset) (*CuratedStrategy, error) {
	for i := range datasets {
		if datasets[i].pattern == nil {
			if err := datasets[i].compile(); err != nil {
				return nil, err
			}
		}
	}
	return &CuratedStrategy{datasets: datasets}, nil
}

func mergeDatasets(base, extra []Dataset) []Dataset {
	out := make([]Dataset, 0, len(base)+len(extra))
	overridden := make(map[string]bool, len(extra))
	for _, d := range extra {
		overridden[d.ID] = true
	}
	for _, d := range base {
		if !overridden[d.ID] {
			out = append(out, d)
		}
	}
	return append(out, extra...)
}

func (s *CuratedStrategy) Name() string { return "curated" }

// Datasets returns the IDs of the loaded datasets in match order.
func (s *CuratedStrategy) Datasets() []string {
	ids := make([]string, len(s.datasets))
	for i, d := range s.datasets {
		ids[i] = d.ID
	}
	return ids
}

func (s *CuratedStrategy) Attempt(_ context.Context, q Query) (*Result, error) {
	for i := range s.datasets {
		d := &s.datasets[i]
		if !d.matches(q) {
			continue
		}
		set := d.answers(q)
		if set.Len() == 0 {
			// The table does not cover the requested years.
			continue
		}
		return &Result{
			Title:       d.Title,
			Description: d.Description,
			Answers:     set,
			TimeLimit:   q.TimeLimit,
		}, nil
	}
	return nil, ErrNotApplicable
}
