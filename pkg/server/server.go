// Package server is the HTTP front end of training, prediction and the model registry.
package server

import (
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/backorder/pkg/echoutil"
	"github.com/opst/backorder/pkg/journal"
	kstrings "github.com/opst/backorder/pkg/utils/strings"
)

type Config struct {
	LogLevel string

	// limit of batch prediction request bodies. No limit when <= 0.
	MaxBatchBytes int64
}

// New creates an echo server with routes:
//
//   - POST /api/train
//   - POST /api/predict
//   - POST /api/predict/batch
//   - GET /api/models
//   - GET /api/models/latest
//   - GET /api/runs
//   - GET /metrics
func New(conf Config, trainer Trainer, predictor Predictor, reg Versions, j journal.Journal) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, conf.LogLevel)
	e.Use(echoutil.LogHandlerFunc)

	api := root("/api")
	e.POST(api("train"), TrainHandler(trainer))
	e.POST(api("predict"), PredictHandler(predictor))
	e.POST(api("predict", "batch"), PredictBatchHandler(predictor, conf.MaxBatchBytes))
	e.GET(api("models"), ModelsHandler(reg))
	e.GET(api("models", "latest"), LatestModelHandler(reg))
	e.GET(api("runs"), RunsHandler(j))
	e.GET(root("/")("metrics"), MetricsHandler(reg, j))
	return e
}

// root returns a factory of slash-terminated paths under r.
func root(r string) func(...string) string {
	return func(s ...string) string {
		return kstrings.SupplySuffix(path.Join(append([]string{r}, s...)...), "/")
	}
}
