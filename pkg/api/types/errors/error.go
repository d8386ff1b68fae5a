// Package errors defines the error body of the HTTP API.
//
// Handlers return *echo.HTTPError built by this package, and the echo error
// handler writes it as
//
//	{"error": {"reason": "...", "advice": "..."}}
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Body is the JSON document of error responses.
type Body struct {
	Error Detail `json:"error"`
}

// Detail tells a client what went wrong.
type Detail struct {
	// Reason is what happened.
	Reason string `json:"reason"`

	// Advice is what the client can do about it. Optional.
	Advice string `json:"advice,omitempty"`

	// cause is kept for server side logs. It is not sent to clients.
	cause error
}

func (d Detail) Error() string {
	parts := []string{d.Reason}
	if d.Advice != "" {
		parts = append(parts, "("+d.Advice+")")
	}
	if d.cause != nil {
		parts = append(parts, "caused by: "+d.cause.Error())
	}
	return strings.Join(parts, " ")
}

func (d Detail) Unwrap() error {
	return d.cause
}

type Option func(*Detail) *Detail

// WithAdvice sets advice for clients.
func WithAdvice(advice string) Option {
	return func(d *Detail) *Detail {
		d.Advice = advice
		return d
	}
}

// WithError records err as the cause.
func WithError(err error) Option {
	return func(d *Detail) *Detail {
		d.cause = err
		return d
	}
}

// New builds an HTTP error with the status code and the reason.
//
// The Detail is set as the internal error of the returned one, so that
// access logs can show the cause.
func New(code int, reason string, options ...Option) *echo.HTTPError {
	d := &Detail{Reason: reason}
	for _, o := range options {
		d = o(d)
	}
	return echo.NewHTTPError(code, Body{Error: *d}).SetInternal(*d)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return New(
		http.StatusBadRequest, "request is malformed",
		WithAdvice(advice), WithError(err),
	)
}

func NotFound() *echo.HTTPError {
	return New(http.StatusNotFound, "not found")
}

func Conflict(reason string, options ...Option) *echo.HTTPError {
	return New(http.StatusConflict, reason, options...)
}

func PayloadTooLarge(limit int64, err error) *echo.HTTPError {
	return New(
		http.StatusRequestEntityTooLarge, "request body is too large",
		WithAdvice(fmt.Sprintf("body should be at most %d bytes.", limit)), WithError(err),
	)
}

func UnprocessableEntity(reason string, options ...Option) *echo.HTTPError {
	return New(http.StatusUnprocessableEntity, reason, options...)
}

func ServiceUnavailable(advice string, err error) *echo.HTTPError {
	return New(
		http.StatusServiceUnavailable, "service is not available now",
		WithAdvice(advice), WithError(err),
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return New(
		http.StatusInternalServerError, "unexpected error",
		WithAdvice("retry later. if it persists, contact the administrator."),
		WithError(err),
	)
}
