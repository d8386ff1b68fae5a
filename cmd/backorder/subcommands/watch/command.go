package watch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	apiruns "github.com/opst/backorder/pkg/api/types/runs"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/journal"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Settle string `flag:"settle" metavar:"DURATION" help:"time to wait after a modification before training, like 500ms or 2s."`
}

const ARG_SOURCE = "SOURCE"

type Watcher interface {
	Watch(ctx context.Context, source string, settle time.Duration, onResult func(domain.RunResult, error)) (int, error)
}

// NewWatcher builds a Watcher for conf. The returned func releases it.
type NewWatcher func(ctx context.Context, logger *log.Logger, conf configs.Config) (Watcher, func(), error)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Train each time the source table is modified.",
		Flags{Settle: "1s"},
		flarc.Args{
			{
				Name: ARG_SOURCE, Required: false,
				Help: "Table to watch and train with. The source in the configuration is used when omitted.",
			},
		},
		common.NewTask(Task(Orchestrator)),
		flarc.WithDescription(`
Run the training pipeline once, and then again each time SOURCE is modified,
until interrupted.

Summaries of runs are written to stdout in JSON, one per run.
Failed or rejected runs do not stop watching.
`),
	)
}

func Orchestrator(ctx context.Context, logger *log.Logger, conf configs.Config) (Watcher, func(), error) {
	deps, err := common.Open(ctx, conf, logger)
	if err != nil {
		return nil, nil, err
	}
	return deps.Orchestrator(), deps.Close, nil
}

func Task(newWatcher NewWatcher) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		conf configs.Config,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		settle, err := time.ParseDuration(cl.Flags().Settle)
		if err != nil {
			return fmt.Errorf("%w: --settle: %w", flarc.ErrUsage, err)
		}
		if settle < 0 {
			return fmt.Errorf("%w: --settle should not be negative", flarc.ErrUsage)
		}

		source := ""
		if s := cl.Args()[ARG_SOURCE]; 0 < len(s) {
			source = s[0]
		}

		watcher, release, err := newWatcher(ctx, logger, conf)
		if err != nil {
			return err
		}
		defer release()

		runs, err := watcher.Watch(ctx, source, settle, func(result domain.RunResult, err error) {
			if result.RunId == "" {
				logger.Printf("run could not start: %s", err)
				return
			}
			if err != nil {
				logger.Printf("run %s: %s", result.RunId, err)
			}
			if derr := common.Dump(
				cl.Stdout(), apiruns.ComposeSummary(journal.RecordOf(result.Source, result, err)),
			); derr != nil {
				logger.Printf("summary can not be written: %s", derr)
			}
		})
		logger.Printf("stop watching after %d runs", runs)
		return err
	}
}
