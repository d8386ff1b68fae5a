package train

import (
	"context"
	"io"
	"log"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	apiruns "github.com/opst/backorder/pkg/api/types/runs"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/journal"
	"github.com/opst/backorder/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Quiet bool `flag:"quiet" alias:"q" help:"do not show progress of stages"`
}

const ARG_SOURCE = "SOURCE"

type Trainer interface {
	Run(ctx context.Context, sourceOverride string) (domain.RunResult, error)
}

// NewTrainer builds a Trainer notifying observer. The returned func releases it.
type NewTrainer func(
	ctx context.Context, logger *log.Logger, conf configs.Config, observer pipeline.Observer,
) (Trainer, func(), error)

type Option struct {
	newTrainer NewTrainer
}

func WithTrainer(newTrainer NewTrainer) func(*Option) *Option {
	return func(o *Option) *Option {
		o.newTrainer = newTrainer
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{newTrainer: Orchestrator}
	for _, opt := range options {
		option = opt(option)
	}

	return flarc.NewCommand(
		"Run the training pipeline once.",
		Flags{Quiet: false},
		flarc.Args{
			{
				Name: ARG_SOURCE, Required: false,
				Help: "Table to train with (.csv or .parquet). The source in the configuration is used when omitted.",
			},
		},
		common.NewTask(Task(option.newTrainer)),
		flarc.WithDescription(`
Run the training pipeline once: ingestion, validation, transformation,
training, evaluation and promotion.

The summary of the run is written to stdout in JSON.
When the new model does not outperform the deployed one, the run is "rejected"
and the registry is left unchanged. It is not an error.
`),
	)
}

func Orchestrator(
	ctx context.Context, logger *log.Logger, conf configs.Config, observer pipeline.Observer,
) (Trainer, func(), error) {
	deps, err := common.Open(ctx, conf, logger)
	if err != nil {
		return nil, nil, err
	}
	return deps.Orchestrator(pipeline.WithObserver(observer)), deps.Close, nil
}

func Task(newTrainer NewTrainer) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		conf configs.Config,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		source := ""
		if s := cl.Args()[ARG_SOURCE]; 0 < len(s) {
			source = s[0]
		}

		var out io.Writer = io.Discard
		if !cl.Flags().Quiet {
			out = cl.Stderr()
		}
		bar := newProgress(out)

		trainer, release, err := newTrainer(ctx, logger, conf, bar)
		if err != nil {
			return err
		}
		defer release()

		result, err := trainer.Run(ctx, source)
		bar.Done()
		if result.RunId == "" {
			return err
		}

		if derr := common.Dump(
			cl.Stdout(), apiruns.ComposeSummary(journal.RecordOf(result.Source, result, err)),
		); derr != nil {
			logger.Printf("summary can not be written: %s", derr)
		}
		if domain.IsRejection(err) {
			logger.Printf("model is not promoted: %s", err)
			return nil
		}
		return err
	}
}
