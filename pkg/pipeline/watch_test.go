package pipeline_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opst/backorder/internal/testutils/fakemodel"
	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/pipeline"
	"github.com/opst/backorder/pkg/utils/try"
	"gonum.org/v1/gonum/mat"
)

// touching fails always, and rewrites a file when it is fitted for the nth time.
type touching struct {
	path  string
	nth   int32
	fits  atomic.Int32
	touch func(path string) error
}

func (l *touching) Fit(mat.Matrix, []int) (classifier.Model, error) {
	if l.fits.Add(1) == l.nth {
		if err := l.touch(l.path); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("fake")
}

func rewrite(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, os.FileMode(0o644))
}

type watched struct {
	runs int
	err  error
}

// watch starts testee.Watch in background.
//
// It returns a func waiting the next run and the channel of the result of Watch.
func watch(ctx context.Context, t *testing.T, testee *pipeline.Orchestrator) (func() error, <-chan watched) {
	results := make(chan error, 16)
	done := make(chan watched, 1)
	go func() {
		runs, err := testee.Watch(ctx, "", 10*time.Millisecond, func(_ domain.RunResult, err error) {
			results <- err
		})
		done <- watched{runs: runs, err: err}
	}()

	next := func() error {
		t.Helper()
		select {
		case err := <-results:
			return err
		case <-ctx.Done():
			t.Fatal("run is not triggered")
			return nil
		}
	}
	return next, done
}

func TestOrchestrator_Watch(t *testing.T) {
	t.Run("it runs once, and again when source is modified", func(t *testing.T) {
		conf := config(t)
		// fails fast at training
		learner := fakemodel.Learner{Err: errors.New("fake")}
		testee := pipeline.New(conf, pipeline.WithLogger(logger.Null()), pipeline.WithLearner(learner))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		next, done := watch(ctx, t, testee)

		// initial run
		if err := next(); err == nil {
			t.Fatal("fake learner should fail")
		} else if stage, _ := domain.FailedStage(err); stage != domain.Training {
			t.Errorf("unexpected error: %v", err)
		}

		if err := rewrite(conf.Source); err != nil {
			t.Fatal(err)
		}
		if err := next(); err == nil {
			t.Fatal("fake learner should fail")
		}

		cancel()
		r := <-done
		if r.err != nil {
			t.Errorf("unexpected error: %v", r.err)
		}
		if r.runs < 2 {
			t.Errorf("runs: %d", r.runs)
		}

		records := try.To(testee.Journal().List(context.Background())).OrFatal(t)
		if len(records) < 2 {
			t.Errorf("records: %+v", records)
		}
	})

	t.Run("a modification during a run triggers another run", func(t *testing.T) {
		conf := config(t)
		// the 2nd run modifies source while training
		learner := &touching{path: conf.Source, nth: 2, touch: rewrite}
		testee := pipeline.New(conf, pipeline.WithLogger(logger.Null()), pipeline.WithLearner(learner))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		next, done := watch(ctx, t, testee)

		if err := next(); err == nil {
			t.Fatal("fake learner should fail")
		}
		if err := rewrite(conf.Source); err != nil {
			t.Fatal(err)
		}
		if err := next(); err == nil {
			t.Fatal("fake learner should fail")
		}

		// nobody but the learner touches source from here.
		if err := next(); err == nil {
			t.Fatal("fake learner should fail")
		} else if stage, _ := domain.FailedStage(err); stage != domain.Training {
			t.Errorf("unexpected error: %v", err)
		}

		cancel()
		r := <-done
		if r.err != nil {
			t.Errorf("unexpected error: %v", r.err)
		}
		if r.runs < 3 {
			t.Errorf("runs: %d", r.runs)
		}
		if fits := learner.fits.Load(); fits < 3 {
			t.Errorf("fits: %d", fits)
		}
	})
}
