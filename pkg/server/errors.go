package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/backorder/pkg/api/types/errors"
	"github.com/opst/backorder/pkg/domain"
)

// asHTTPError maps errors of the pipeline and prediction into API errors.
func asHTTPError(err error) *echo.HTTPError {
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		return herr
	}

	reason := "request can not be processed"
	if stage, ok := domain.FailedStage(err); ok {
		reason = fmt.Sprintf("training is stopped at %s", stage)
	}

	switch {
	case errors.Is(err, domain.ErrModelUnavailable):
		return apierr.ServiceUnavailable("no models are published yet. train a model first.", err)
	case errors.Is(err, domain.ErrFeatureSchemaMismatch):
		return apierr.BadRequest("input should have every feature column the model is trained with, and no column unknown to it.", err)
	case errors.Is(err, domain.ErrModelNotImproved):
		return apierr.Conflict(
			"new model does not outperform the deployed model",
			apierr.WithAdvice("the registry is unchanged."),
			apierr.WithError(err),
		)
	case errors.Is(err, domain.ErrDataUnavailable),
		errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrMissingDataset),
		errors.Is(err, domain.ErrTransformFit):
		return apierr.UnprocessableEntity(
			reason,
			apierr.WithAdvice("check the dataset."),
			apierr.WithError(err),
		)
	case errors.Is(err, domain.ErrUnderfitModel), errors.Is(err, domain.ErrOverfitModel):
		return apierr.UnprocessableEntity(
			reason,
			apierr.WithAdvice("the model does not satisfy quality gates. check the dataset or training parameters."),
			apierr.WithError(err),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierr.ServiceUnavailable("request is canceled. retry later.", err)
	default:
		return apierr.InternalServerError(err)
	}
}
