package predict

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/prediction"
	"github.com/opst/backorder/pkg/registry"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Output string `flag:"output" alias:"o" metavar:"DIR" help:"directory to write predictions into. The prediction root in the configuration is used when omitted."`
}

const ARG_INPUT = "INPUT"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Predict back-orders of rows in a table file.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_INPUT, Required: true,
				Help: "Table to be predicted (.csv or .parquet).",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Predict back-orders of every row in INPUT with the latest model in the registry.

Predictions are written as a new CSV file in the output directory,
with the column "`+prediction.Column+`" appended to the input columns.
The path of the written file is printed to stdout.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	conf configs.Config,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	input := cl.Args()[ARG_INPUT][0]
	outDir := cl.Flags().Output
	if outDir == "" {
		outDir = conf.PredictionRoot
	}

	predictor := prediction.New(
		registry.New(conf.RegistryRoot), conf.TargetColumn, conf.Ingestion.DropColumns,
	)
	path, pred, err := predictor.PredictFile(ctx, input, outDir)
	if err != nil {
		return err
	}
	logger.Printf("%d rows are predicted with version %d", pred.Table.NumRows(), pred.Version)
	fmt.Fprintln(cl.Stdout(), path)
	return nil
}
