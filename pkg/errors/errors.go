// Package errors wraps errors with the location where they are wrapped.
//
//	if err != nil {
//		return xe.Wrap(err)
//	}
//
// The message of a wrapped error is like
//
//	@ pkg.Func "file.go" l12 <- cause
//
// so that chained wraps read as a trace of where the error has passed.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Frame is a location in the source.
type Frame struct {
	Func string
	File string
	Line int
}

func (f Frame) String() string {
	return fmt.Sprintf(`%s "%s" l%d`, f.Func, f.File, f.Line)
}

// Located is an error with the Frame where it has been wrapped.
type Located struct {
	Frame Frame
	note  string
	err   error
}

func (e *Located) Error() string {
	if e.note == "" {
		return fmt.Sprintf("@ %s <- %s", e.Frame, e.err)
	}
	return fmt.Sprintf("@ %s (%s) <- %s", e.Frame, e.note, e.err)
}

func (e *Located) Unwrap() error {
	return e.err
}

// New creates an error located at the caller.
func New(text string) error {
	return locate("", errors.New(text), 1)
}

// Wrap locates err at the caller.
func Wrap(err error) error {
	return locate("", err, 1)
}

// WrapWithNote locates err at the caller, with a note like a path or a name.
func WrapWithNote(note string, err error) error {
	return locate(note, err, 1)
}

// Trace lists frames of Located errors in the chain of err, from the outermost.
func Trace(err error) []Frame {
	frames := []Frame{}
	for err != nil {
		var l *Located
		if !errors.As(err, &l) {
			break
		}
		frames = append(frames, l.Frame)
		err = l.err
	}
	return frames
}

func locate(note string, err error, skip int) error {
	frame := Frame{Func: "(unknown func)", File: "?", Line: -1}
	if pc, file, line, ok := runtime.Caller(skip + 1); ok {
		frame.File = file
		frame.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			frame.Func = fn.Name()
		}
	}
	return &Located{Frame: frame, note: note, err: err}
}
