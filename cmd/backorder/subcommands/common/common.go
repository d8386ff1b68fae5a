package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/youta-t/flarc"
)

// CommonFlags are flags shared by every subcommand.
type CommonFlags struct {
	Config string `flag:"config" alias:"c" metavar:"FILE" help:"path to the configuration file. Defaults are used when not set."`
}

// Task is a subcommand with the configuration loaded.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlags CommonFlags,
	conf configs.Config,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask adapts task into flarc.Task.
//
// The command group passes CommonFlags as one of params. NewTask takes it out,
// and loads the configuration file named by it.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], params []any) error {
		commonFlags, rest, err := takeCommonFlags(params)
		if err != nil {
			return err
		}
		conf, err := loadConfig(commonFlags.Config)
		if err != nil {
			return err
		}
		logger := log.New(cl.Stderr(), "["+cl.Fullname()+"] ", log.LstdFlags)
		return task(ctx, logger, commonFlags, conf, cl, rest)
	}
}

func takeCommonFlags(params []any) (CommonFlags, []any, error) {
	for i, p := range params {
		if cf, ok := p.(CommonFlags); ok {
			rest := append(append([]any{}, params[:i]...), params[i+1:]...)
			return cf, rest, nil
		}
	}
	return CommonFlags{}, nil, errors.New("programming error: common flags not found")
}

func loadConfig(path string) (configs.Config, error) {
	if path == "" {
		return configs.Default(), nil
	}
	conf, err := configs.Load(path)
	if err != nil {
		return configs.Config{}, fmt.Errorf("configuration %s can not be loaded: %w", path, err)
	}
	return conf, nil
}

// Dump writes v in indented JSON.
func Dump(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
