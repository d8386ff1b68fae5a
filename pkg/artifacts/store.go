// Package artifacts manages run directories: one directory per pipeline run,
// named after its creation time, with a fixed layout of artifact paths.
package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/utils/retry"
)

// run id format. It sorts in creation order.
const RunIdLayout = "20060102T150405.000000Z"

// Layout is the set of artifact paths of a run.
type Layout struct {
	FeatureStore string
	Train        string
	Test         string

	ValidationReport string
	ValidatedTrain   string
	ValidatedTest    string

	Transformer      string
	TargetEncoder    string
	TransformedTrain string
	TransformedTest  string

	Model string

	Verdict string

	// directory mirroring the promoted bundle
	Promotion string

	Journal string
	Metrics string
}

func layoutOf(dir string) Layout {
	p := func(elem ...string) string {
		return filepath.Join(append([]string{dir}, elem...)...)
	}
	return Layout{
		FeatureStore: p("ingestion", "feature_store", "cleaned.parquet"),
		Train:        p("ingestion", "dataset", "train.parquet"),
		Test:         p("ingestion", "dataset", "test.parquet"),

		ValidationReport: p("validation", "report.yaml"),
		ValidatedTrain:   p("validation", "dataset", "train.parquet"),
		ValidatedTest:    p("validation", "dataset", "test.parquet"),

		Transformer:      p("transformation", "transformer.gob"),
		TargetEncoder:    p("transformation", "target_encoder.gob"),
		TransformedTrain: p("transformation", "transformed", "train.mat"),
		TransformedTest:  p("transformation", "transformed", "test.mat"),

		Model: p("training", "model.gob"),

		Verdict: p("evaluation", "verdict.yaml"),

		Promotion: p("promotion"),

		Journal: p("run.yaml"),
		Metrics: p("metrics.prom"),
	}
}

type Run struct {
	Id        string
	Dir       string
	CreatedAt time.Time
	Layout    Layout
}

type Store struct {
	root  string
	clock func() time.Time
}

type Option func(*Store) *Store

// WithClock replaces the clock deciding run ids.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) *Store {
		s.clock = clock
		return s
	}
}

func NewStore(root string, options ...Option) *Store {
	s := &Store{root: root, clock: time.Now}
	for _, opt := range options {
		s = opt(s)
	}
	return s
}

func (s *Store) Root() string {
	return s.root
}

// Create makes a new run directory and the directories of its layout.
//
// When a run with the same timestamp exists, it retries with a new timestamp.
// An existing run directory is never reused.
func (s *Store) Create(ctx context.Context) (Run, error) {
	if err := os.MkdirAll(s.root, os.FileMode(0o755)); err != nil {
		return Run{}, xe.Wrap(err)
	}

	run, err := retry.Blocking(
		ctx, retry.StaticBackoff(time.Millisecond),
		func() (Run, error) {
			now := s.clock().UTC()
			id := now.Format(RunIdLayout)
			dir := filepath.Join(s.root, id)
			if err := os.Mkdir(dir, os.FileMode(0o755)); errors.Is(err, os.ErrExist) {
				return Run{}, retry.ErrRetry
			} else if err != nil {
				return Run{}, xe.Wrap(err)
			}
			return Run{Id: id, Dir: dir, CreatedAt: now, Layout: layoutOf(dir)}, nil
		},
	)
	if err != nil {
		return Run{}, err
	}

	l := run.Layout
	for _, d := range []string{
		filepath.Dir(l.FeatureStore), filepath.Dir(l.Train),
		filepath.Dir(l.ValidatedTrain),
		filepath.Dir(l.TransformedTrain),
		filepath.Dir(l.Model),
		filepath.Dir(l.Verdict),
	} {
		if err := os.MkdirAll(d, os.FileMode(0o755)); err != nil {
			return Run{}, xe.Wrap(err)
		}
	}
	return run, nil
}

// Open returns an existing run.
func (s *Store) Open(id string) (Run, error) {
	createdAt, err := time.Parse(RunIdLayout, id)
	if err != nil {
		return Run{}, xe.WrapWithNote("run id "+id, err)
	}
	dir := filepath.Join(s.root, id)
	st, err := os.Stat(dir)
	if err != nil {
		return Run{}, xe.Wrap(err)
	}
	if !st.IsDir() {
		return Run{}, xe.New(dir + " is not a directory")
	}
	return Run{Id: id, Dir: dir, CreatedAt: createdAt, Layout: layoutOf(dir)}, nil
}

// List returns runs in creation order. Entries not named as a run id are ignored.
func (s *Store) List() ([]Run, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []Run{}, nil
	} else if err != nil {
		return nil, xe.Wrap(err)
	}
	runs := []Run{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		createdAt, err := time.Parse(RunIdLayout, e.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(s.root, e.Name())
		runs = append(runs, Run{Id: e.Name(), Dir: dir, CreatedAt: createdAt, Layout: layoutOf(dir)})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, nil
}
