package runs

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	apiruns "github.com/opst/backorder/pkg/api/types/runs"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/journal"
	kstrings "github.com/opst/backorder/pkg/utils/strings"
	"github.com/youta-t/flarc"
	"k8s.io/apimachinery/pkg/util/sets"
)

type Flags struct {
	Status string `flag:"status" alias:"s" metavar:"succeeded|rejected|failed,..." help:"show only runs in these statuses, separated by comma."`
}

// OpenJournal opens the journal for conf. The returned func releases it.
type OpenJournal func(ctx context.Context, logger *log.Logger, conf configs.Config) (journal.Journal, func(), error)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show history of pipeline runs.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(Journal)),
		flarc.WithDescription(`
Show summaries of pipeline runs in JSON, in the order they have started.
`),
	)
}

func Journal(ctx context.Context, logger *log.Logger, conf configs.Config) (journal.Journal, func(), error) {
	deps, err := common.Open(ctx, conf, logger)
	if err != nil {
		return nil, nil, err
	}
	return deps.Journal, deps.Close, nil
}

func Task(open OpenJournal) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		_ common.CommonFlags,
		conf configs.Config,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		statuses := sets.New[domain.RunStatus]()
		for _, s := range kstrings.SplitFields(cl.Flags().Status, ",") {
			st, err := domain.AsRunStatus(s)
			if err != nil {
				return fmt.Errorf("%w: --status: %w", flarc.ErrUsage, err)
			}
			statuses.Insert(st)
		}

		j, release, err := open(ctx, logger, conf)
		if err != nil {
			return err
		}
		defer release()

		records, err := j.List(ctx)
		if err != nil {
			return err
		}
		summaries := make([]apiruns.Summary, 0, len(records))
		for _, r := range records {
			if statuses.Len() != 0 && !statuses.Has(r.Status) {
				continue
			}
			summaries = append(summaries, apiruns.ComposeSummary(r))
		}
		return common.Dump(cl.Stdout(), summaries)
	}
}
