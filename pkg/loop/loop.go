// Package loop repeats a task until it breaks or its context is done.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task.
//
// The zero value continues without interval.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.interval)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. Start returns err.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task receives the value returned last time, and returns a new value and what to do next.
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task repeatedly, passing init at the first time.
//
// It returns the value the task has returned at last, with the error given to Break.
// When ctx is done before breaking, it returns ctx.Err().
//
// Example: counting up to 10.
//
//	n, err := Start(ctx, 0, func(_ context.Context, n int) (int, Next) {
//		if n += 1; 10 <= n {
//			return n, Break(nil)
//		}
//		return n, Continue(0)
//	})
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	value := init
	if err := ctx.Err(); err != nil {
		return value, err
	}

	for {
		v, next := task(ctx, value)
		value = v
		if next.err != nil {
			return value, next.err
		}
		if next.quit {
			return value, nil
		}

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
