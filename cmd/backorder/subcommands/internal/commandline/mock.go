// Package commandline provides a flarc.Commandline for tests of subcommands.
package commandline

import (
	"io"
	"strings"

	"github.com/youta-t/flarc"
)

// Fake is a flarc.Commandline with fixed flags and args.
//
// Stdin is empty. Outputs are kept in Out and ErrOut.
type Fake[T any] struct {
	name  string
	flags T
	args  map[string][]string

	Out    *strings.Builder
	ErrOut *strings.Builder
}

var _ flarc.Commandline[struct{}] = &Fake[struct{}]{}

// New creates a Fake for the command named name. A nil args means no args.
func New[T any](name string, flags T, args map[string][]string) *Fake[T] {
	if args == nil {
		args = map[string][]string{}
	}
	return &Fake[T]{
		name:   name,
		flags:  flags,
		args:   args,
		Out:    new(strings.Builder),
		ErrOut: new(strings.Builder),
	}
}

func (f *Fake[T]) Fullname() string { return f.name }
func (f *Fake[T]) Stdin() io.Reader { return strings.NewReader("") }
func (f *Fake[T]) Stdout() io.Writer { return f.Out }
func (f *Fake[T]) Stderr() io.Writer { return f.ErrOut }
func (f *Fake[T]) Flags() T { return f.flags }
func (f *Fake[T]) Args() map[string][]string { return f.args }
