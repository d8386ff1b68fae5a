// Package http helps tests of echo handlers.
package http

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

// Header modifies headers of a request under test.
type Header func(http.Header)

func ContentType(ctyp string) Header {
	return func(h http.Header) { h.Set(echo.HeaderContentType, ctyp) }
}

func request(method, target string, body io.Reader, headers []Header) *http.Request {
	req := httptest.NewRequest(method, target, body)
	for _, h := range headers {
		h(req.Header)
	}
	return req
}

// Get builds an echo.Context for a GET request and a recorder of its response.
//
// Handlers are called with the context directly, bypassing routes.
func Get(e *echo.Echo, target string, headers ...Header) (echo.Context, *httptest.ResponseRecorder) {
	resp := httptest.NewRecorder()
	return e.NewContext(request(http.MethodGet, target, nil, headers), resp), resp
}

// Post is Get for POST requests with body.
func Post(e *echo.Echo, target string, body io.Reader, headers ...Header) (echo.Context, *httptest.ResponseRecorder) {
	resp := httptest.NewRecorder()
	return e.NewContext(request(http.MethodPost, target, body, headers), resp), resp
}

// Serve sends a request through routes and middlewares of e.
func Serve(e *echo.Echo, method, target string, body io.Reader, headers ...Header) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, request(method, target, body, headers))
	return resp
}
