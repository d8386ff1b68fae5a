package context

import (
	"context"
	"testing"
	"time"
)

// WithTest derives a context which is done 1 second before the deadline of the test,
// to leave time to clean up resources.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return context.WithCancel(ctx)
}
