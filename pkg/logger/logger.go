package logger

import (
	"fmt"
	"io"
	"log"
)

func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func Default() *log.Logger {
	return log.Default()
}

// Named derives a logger writing to the same destination as base,
// with "[name] " appended to the prefix of base.
//
// When base is nil, it derives from Default().
func Named(base *log.Logger, name string) *log.Logger {
	if base == nil {
		base = Default()
	}
	return log.New(base.Writer(), base.Prefix()+fmt.Sprintf("[%s] ", name), base.Flags())
}
