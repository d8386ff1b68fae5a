package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	submodels "github.com/opst/backorder/cmd/backorder/subcommands/models"
	subpredict "github.com/opst/backorder/cmd/backorder/subcommands/predict"
	subruns "github.com/opst/backorder/cmd/backorder/subcommands/runs"
	subserve "github.com/opst/backorder/cmd/backorder/subcommands/serve"
	subtrain "github.com/opst/backorder/cmd/backorder/subcommands/train"
	subver "github.com/opst/backorder/cmd/backorder/subcommands/version"
	subwatch "github.com/opst/backorder/cmd/backorder/subcommands/watch"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	train := try.To(subtrain.New()).OrFatal(logger)
	watch := try.To(subwatch.New()).OrFatal(logger)
	predict := try.To(subpredict.New()).OrFatal(logger)
	serve := try.To(subserve.New()).OrFatal(logger)
	models := try.To(submodels.New()).OrFatal(logger)
	runs := try.To(subruns.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	backorder := try.To(
		flarc.NewCommandGroup(
			"Back-order prediction: training pipeline, model registry and predictions",
			common.CommonFlags{},
			flarc.WithSubcommand("train", train),
			flarc.WithSubcommand("watch", watch),
			flarc.WithSubcommand("predict", predict),
			flarc.WithSubcommand("serve", serve),
			flarc.WithSubcommand("models", models),
			flarc.WithSubcommand("runs", runs),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, backorder, flarc.WithHelp(true)))
}
