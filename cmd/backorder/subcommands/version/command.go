package version

import (
	"context"
	"fmt"

	"github.com/opst/backorder/pkg/buildtime"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Print the version and the commit of backorder.",
		struct{}{},
		flarc.Args{},
		func(_ context.Context, cl flarc.Commandline[struct{}], _ []any) error {
			_, err := fmt.Fprintf(cl.Stdout(), "backorder %s\n", buildtime.VersionString())
			return err
		},
	)
}
