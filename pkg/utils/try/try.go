// Package try shortens handling of (value, error) pairs in tests.
//
//	table := try.To(table.Read(path)).OrFatal(t)
package try

// Fataler stops a test. *testing.T and *log.Logger are Fatalers.
type Fataler interface {
	Fatal(...any)
}

// Result is a value which may have failed to be got.
type Result[T any] struct {
	Value T
	Err   error
}

func To[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Err: err}
}

// OrFatal returns the value, or calls ftl.Fatal with the error.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.Err != nil {
		fatal(ftl, r.Err)
	}
	return r.Value
}

// Result2 is Result of a pair, like (version, found, error).
type Result2[A, B any] struct {
	A   A
	B   B
	Err error
}

func To2[A, B any](a A, b B, err error) Result2[A, B] {
	return Result2[A, B]{A: a, B: b, Err: err}
}

func (r Result2[A, B]) OrFatal(ftl Fataler) (A, B) {
	if r.Err != nil {
		fatal(ftl, r.Err)
	}
	return r.A, r.B
}

func fatal(ftl Fataler, err error) {
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(err)
}
