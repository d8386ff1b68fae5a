package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/server"
	"github.com/opst/backorder/pkg/utils/filewatch"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Port     int    `flag:"port" alias:"p" help:"port to listen. The port in the configuration is used when 0."`
	LogLevel string `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"log level of the server. The level in the configuration is used when omitted."`
}

// time to wait for requests in flight on shutdown
const gracePeriod = 15 * time.Second

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve training, prediction and the model registry over HTTP.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Start an HTTP server with these endpoints:

    POST /api/train            run the training pipeline
    POST /api/predict          predict a JSON record
    POST /api/predict/batch    predict rows of a CSV body
    GET  /api/models           list registry versions
    GET  /api/models/latest    show the latest version
    GET  /api/runs             show history of runs
    GET  /metrics              gauges in Prometheus text format

When the configuration file is modified, the server shuts down so that
a supervisor can restart it with the new configuration.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	commonFlags common.CommonFlags,
	conf configs.Config,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	flags := cl.Flags()
	port := flags.Port
	if port == 0 {
		port = conf.Server.Port
	}
	if port < 0 || 65535 < port {
		return fmt.Errorf("%w: --port should be in [0, 65535]: %d", flarc.ErrUsage, port)
	}
	loglevel := flags.LogLevel
	if loglevel == "" {
		loglevel = conf.Server.LogLevel
	}

	deps, err := common.Open(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	e := server.New(
		server.Config{LogLevel: loglevel, MaxBatchBytes: conf.Ingestion.MaxSourceBytes},
		deps.Orchestrator(),
		deps.Predictor(),
		deps.Registry,
		deps.Journal,
	)
	for _, r := range e.Routes() {
		logger.Println("route:", r.Method, r.Path)
	}

	stop := ctx
	if commonFlags.Config != "" {
		modified, cancel, err := filewatch.UntilModifyContext(ctx, commonFlags.Config)
		if err != nil {
			return fmt.Errorf("can not watch configuration: %w", err)
		}
		defer cancel()
		stop = modified
	}

	served := make(chan error, 1)
	go func() {
		served <- e.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-served:
		return err
	case <-stop.Done():
	}
	if ctx.Err() == nil {
		logger.Printf("configuration is modified (%s). quit to restart server.", context.Cause(stop))
	}

	graceful, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()
	if err := e.Shutdown(graceful); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
