package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/loop"
	"github.com/opst/backorder/pkg/utils/filewatch"
)

// watching is the state of Watch between iterations.
type watching struct {
	runs int

	// armed is canceled by the next modification of source. nil if not watching.
	armed  context.Context
	disarm func()
}

// Watch trains with source once, and then again each time source is modified.
//
// After a modification, it waits for settle before training, so that a writer can finish.
// The watcher for the next modification is started before each run,
// so that a modification during a run triggers another run.
// Results of runs are passed to onResult. Failed runs do not stop watching.
//
// It returns when ctx is done, with the number of runs.
func (o *Orchestrator) Watch(
	ctx context.Context,
	source string,
	settle time.Duration,
	onResult func(domain.RunResult, error),
) (int, error) {
	if source == "" {
		source = o.conf.Source
	}
	retry := max(settle, time.Second)

	run := func(ctx context.Context) {
		result, err := o.Run(ctx, source)
		onResult(result, err)
	}

	arm := func(ctx context.Context, w watching) (watching, error) {
		modified, cancel, err := filewatch.UntilModifyContext(ctx, source)
		if err != nil {
			return w, err
		}
		w.armed, w.disarm = modified, cancel
		return w, nil
	}

	last, err := loop.Start(ctx, watching{}, func(ctx context.Context, w watching) (watching, loop.Next) {
		if w.armed == nil {
			armed, err := arm(ctx, w)
			if errors.Is(err, os.ErrNotExist) {
				// directory of source is missing. wait for it.
				o.logger.Printf("watch: directory of %s is not found. retry after %s", source, retry)
				return w, loop.Continue(retry)
			} else if err != nil {
				return w, loop.Break(err)
			}
			w = armed
			if w.runs == 0 {
				run(ctx)
				w.runs += 1
			}
			return w, loop.Continue(0)
		}

		<-w.armed.Done()
		cause := context.Cause(w.armed)
		w.disarm()
		w.armed, w.disarm = nil, nil
		if ctx.Err() != nil {
			return w, loop.Break(nil)
		}
		o.logger.Printf("watch: %s", cause)

		select {
		case <-ctx.Done():
			return w, loop.Break(nil)
		case <-time.After(settle):
		}

		armed, err := arm(ctx, w)
		if err != nil {
			// retried by the next iteration
			o.logger.Printf("watch: failed to watch %s: %s", source, err)
		} else {
			w = armed
		}
		run(ctx)
		w.runs += 1
		return w, loop.Continue(0)
	})
	if last.disarm != nil {
		last.disarm()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return last.runs, err
}
