package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/backorder/pkg/api/types/errors"
	apimodels "github.com/opst/backorder/pkg/api/types/models"
	apiruns "github.com/opst/backorder/pkg/api/types/runs"
	"github.com/opst/backorder/pkg/domain"
	"github.com/opst/backorder/pkg/journal"
	"github.com/opst/backorder/pkg/metrics"
	"github.com/opst/backorder/pkg/prediction"
	"github.com/opst/backorder/pkg/table"
	kstrings "github.com/opst/backorder/pkg/utils/strings"
	"k8s.io/apimachinery/pkg/util/sets"
)

// header telling the registry version used for prediction
const HeaderModelVersion = "X-Model-Version"

// Trainer runs the training pipeline.
type Trainer interface {
	Run(ctx context.Context, sourceOverride string) (domain.RunResult, error)
}

type Predictor interface {
	PredictSingle(ctx context.Context, rec prediction.Record) (prediction.Record, int, error)
	PredictBatch(ctx context.Context, t *table.Table) (prediction.Prediction, error)
}

// Versions lists registry versions in ascending order.
type Versions interface {
	Versions() ([]int, error)
}

func TrainHandler(trainer Trainer) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := apiruns.TrainRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return apierr.BadRequest(`body should be empty or {"source": "path/to/table"}`, err)
		}

		result, err := trainer.Run(c.Request().Context(), req.Source)
		if result.RunId == "" && err != nil {
			// no run has been started
			return apierr.InternalServerError(err)
		}
		if err != nil {
			return asHTTPError(err)
		}
		return c.JSON(
			http.StatusOK,
			apiruns.ComposeSummary(journal.RecordOf(result.Source, result, nil)),
		)
	}
}

func PredictHandler(predictor Predictor) echo.HandlerFunc {
	return func(c echo.Context) error {
		dec := json.NewDecoder(c.Request().Body)
		dec.UseNumber()
		rec := prediction.Record{}
		if err := dec.Decode(&rec); err != nil {
			return apierr.BadRequest("body should be a JSON object, mapping column names to values.", err)
		}
		if len(rec) == 0 {
			return apierr.BadRequest("body should have one or more columns.", nil)
		}

		predicted, version, err := predictor.PredictSingle(c.Request().Context(), rec)
		if err != nil {
			return asHTTPError(err)
		}
		c.Response().Header().Set(HeaderModelVersion, strconv.Itoa(version))
		return c.JSON(http.StatusOK, apimodels.PredictResponse{Version: version, Record: predicted})
	}
}

// PredictBatchHandler predicts rows of CSV in the request body, and responds them
// in CSV with the prediction column.
//
// Bodies larger than maxBytes are rejected. maxBytes <= 0 means no limit.
func PredictBatchHandler(predictor Predictor, maxBytes int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := io.Reader(c.Request().Body)
		if 0 < maxBytes {
			body = http.MaxBytesReader(c.Response(), c.Request().Body, maxBytes)
		}
		t, err := table.ReadCSV(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return apierr.PayloadTooLarge(tooLarge.Limit, err)
			}
			return apierr.BadRequest("body should be CSV with a header row.", err)
		}

		pred, err := predictor.PredictBatch(c.Request().Context(), t)
		if errors.Is(err, domain.ErrEmptyDataset) {
			return apierr.BadRequest("body should have one or more rows.", err)
		} else if err != nil {
			return asHTTPError(err)
		}

		buf := new(bytes.Buffer)
		if err := table.WriteCSV(buf, pred.Table); err != nil {
			return apierr.InternalServerError(err)
		}
		c.Response().Header().Set(HeaderModelVersion, strconv.Itoa(pred.Version))
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

func ModelsHandler(reg Versions) echo.HandlerFunc {
	return func(c echo.Context) error {
		versions, err := reg.Versions()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apimodels.Versions(versions))
	}
}

// LatestModelHandler responds the latest version. When the registry is empty, it responds 404.
func LatestModelHandler(reg Versions) echo.HandlerFunc {
	return func(c echo.Context) error {
		versions, err := reg.Versions()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		if len(versions) == 0 {
			return apierr.NotFound()
		}
		all := apimodels.Versions(versions)
		return c.JSON(http.StatusOK, all[len(all)-1])
	}
}

// RunsHandler lists recorded runs in the order they have started.
//
// Query "status" filters runs by comma separated statuses.
func RunsHandler(j journal.Journal) echo.HandlerFunc {
	return func(c echo.Context) error {
		statuses := sets.New[domain.RunStatus]()
		for _, s := range kstrings.SplitFields(c.QueryParam("status"), ",") {
			st, err := domain.AsRunStatus(s)
			if err != nil {
				return apierr.BadRequest(
					`"status" should be one of "succeeded", "rejected" or "failed"`, err,
				)
			}
			statuses.Insert(st)
		}

		records, err := j.List(c.Request().Context())
		if err != nil {
			return apierr.InternalServerError(err)
		}
		resp := make([]apiruns.Summary, 0, len(records))
		for _, r := range records {
			if statuses.Len() != 0 && !statuses.Has(r.Status) {
				continue
			}
			resp = append(resp, apiruns.ComposeSummary(r))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// MetricsHandler exposes gauges of the registry and the journal in Prometheus text format.
func MetricsHandler(reg Versions, j journal.Journal) echo.HandlerFunc {
	return func(c echo.Context) error {
		versions, err := reg.Versions()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		records, err := j.List(c.Request().Context())
		if err != nil {
			return apierr.InternalServerError(err)
		}

		buf := new(bytes.Buffer)
		families := append(metrics.ForRegistry(versions), metrics.ForJournal(records)...)
		if err := metrics.Write(buf, families); err != nil {
			return apierr.InternalServerError(err)
		}
		return c.Blob(http.StatusOK, metrics.ContentType, buf.Bytes())
	}
}
