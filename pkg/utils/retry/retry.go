// Package retry calls a function again until it stops asking to retry.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry is returned by functions to be called again.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next attempt.
//
// It returns ctx.Err() when ctx is done before that.
type Backoff func(ctx context.Context) error

// StaticBackoff waits for interval on each call.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits for initial on the first call, and r times longer on each next call.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Blocking calls f until it returns an error other than ErrRetry, or nil.
// Between calls, it waits with b.
//
// It returns the last values f has returned,
// or the error of b when the wait is interrupted.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		v, err := f()
		if !errors.Is(err, ErrRetry) {
			return v, err
		}
		if err := b(ctx); err != nil {
			return v, err
		}
	}
}
