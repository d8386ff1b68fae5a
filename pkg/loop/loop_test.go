package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/backorder/pkg/loop"
)

func TestStart(t *testing.T) {
	t.Run("it repeats the task until it breaks", func(t *testing.T) {
		actual, err := loop.Start(context.Background(), 1, func(_ context.Context, v int) (int, loop.Next) {
			if v += 1; 10 <= v {
				return v, loop.Break(nil)
			}
			return v, loop.Continue(0)
		})
		if err != nil {
			t.Fatal(err)
		}
		if actual != 10 {
			t.Errorf("unexpected value: %d", actual)
		}
	})

	t.Run("it returns the error of Break with the last value", func(t *testing.T) {
		expected := errors.New("fake")
		actual, err := loop.Start(context.Background(), 1, func(_ context.Context, v int) (int, loop.Next) {
			if v += 1; 3 <= v {
				return v, loop.Break(expected)
			}
			return v, loop.Continue(time.Millisecond)
		})
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 3 {
			t.Errorf("unexpected value: %d", actual)
		}
	})

	t.Run("when the context is done while waiting, it stops", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		actual, err := loop.Start(ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
			return v + 1, loop.Continue(time.Hour)
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 1 {
			t.Errorf("task runs too much: %d", actual)
		}
	})

	t.Run("when the context has been done before starting, it does nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual, err := loop.Start(ctx, 1, func(_ context.Context, v int) (int, loop.Next) {
			t.Error("task is called")
			return v + 1, loop.Continue(0)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 1 {
			t.Errorf("unexpected value: %d", actual)
		}
	})
}

func TestNext_String(t *testing.T) {
	for name, testcase := range map[string]struct {
		next     loop.Next
		expected string
	}{
		"continue": {next: loop.Continue(time.Second), expected: "[continue] interval: 1s"},
		"zero":     {next: loop.Next{}, expected: "[continue] interval: 0s"},
		"break":    {next: loop.Break(nil), expected: "[break] without error"},
		"error":    {next: loop.Break(errors.New("fake")), expected: "[break] with error: fake"},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.next.String(); actual != testcase.expected {
				t.Errorf("(actual, expected) = (%s, %s)", actual, testcase.expected)
			}
		})
	}
}
