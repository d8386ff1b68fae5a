package models

import (
	"context"
	"log"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	apimodels "github.com/opst/backorder/pkg/api/types/models"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/registry"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List versions in the model registry.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
List versions in the model registry in JSON, in ascending order.
The last one is the latest version, which is used for predictions.
`),
	)
}

func Task(
	_ context.Context,
	_ *log.Logger,
	_ common.CommonFlags,
	conf configs.Config,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	versions, err := registry.New(conf.RegistryRoot).Versions()
	if err != nil {
		return err
	}
	return common.Dump(cl.Stdout(), apimodels.Versions(versions))
}
