package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/opst/backorder/pkg/errors"
)

var errRoot = errors.New("root cause")

func createError(message string) error {
	return xe.New(message)
}

func loadModel() error {
	return xe.WrapWithNote("model.gob", errRoot)
}

func promote() error {
	return xe.Wrap(loadModel())
}

func TestNew(t *testing.T) {
	testee := createError("test error")
	message := testee.Error()

	_, thisFile, _, _ := runtime.Caller(0)
	if !strings.Contains(message, "createError") {
		t.Errorf("it does not know function name: %s", message)
	}
	if !strings.Contains(message, thisFile) {
		t.Errorf("it does not know file (%s): %s", thisFile, message)
	}
	if !strings.HasSuffix(message, "<- test error") {
		t.Errorf("it does not end with the message: %s", message)
	}
}

func TestWrap(t *testing.T) {
	t.Run("it supports errors protocol", func(t *testing.T) {
		err := xe.Wrap(fmt.Errorf("%w", fmt.Errorf("%w", errRoot)))
		if !errors.Is(err, errRoot) {
			t.Error("it does not support unwrapping.")
		}
	})

	t.Run("it writes the note", func(t *testing.T) {
		err := loadModel()
		if !strings.Contains(err.Error(), "(model.gob) <- root cause") {
			t.Errorf("note is missing: %s", err)
		}
	})

	t.Run("it traces where the error has passed, from the outermost", func(t *testing.T) {
		frames := xe.Trace(promote())
		if len(frames) != 2 {
			t.Fatalf("unexpected trace: %v", frames)
		}
		if !strings.HasSuffix(frames[0].Func, ".promote") || !strings.HasSuffix(frames[1].Func, ".loadModel") {
			t.Errorf("unexpected trace: %v", frames)
		}
	})

	t.Run("an error not wrapped has no trace", func(t *testing.T) {
		if frames := xe.Trace(errRoot); len(frames) != 0 {
			t.Errorf("unexpected trace: %v", frames)
		}
	})
}
