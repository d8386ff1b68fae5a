package echoutil_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	httptestutil "github.com/opst/backorder/internal/testutils/http"
	"github.com/opst/backorder/pkg/echoutil"
)

func TestSetLevel(t *testing.T) {
	for name, testcase := range map[string]struct {
		when string
		then log.Lvl
	}{
		"debug":             {when: "debug", then: log.DEBUG},
		"info":              {when: "INFO", then: log.INFO},
		"warn":              {when: "warn", then: log.WARN},
		"empty":             {when: "", then: log.WARN},
		"error":             {when: "error", then: log.ERROR},
		"off":               {when: "off", then: log.OFF},
		"unknown (to warn)": {when: "verbose", then: log.WARN},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.Logger.SetOutput(new(bytes.Buffer))
			echoutil.SetLevel(e, testcase.when)
			if got := e.Logger.Level(); got != testcase.then {
				t.Errorf("level: (actual, expected) = (%v, %v)", got, testcase.then)
			}
		})
	}
}

func TestLogHandlerFunc(t *testing.T) {
	for name, testcase := range map[string]struct {
		handler echo.HandlerFunc
		then    []string
	}{
		"it logs the response": {
			handler: func(c echo.Context) error {
				return c.String(http.StatusTeapot, "tea")
			},
			then: []string{`"level":"INFO"`, `"method":"GET"`, `"uri":"/api/models"`, `"status":418`},
		},
		"it logs the status which the error is rendered with": {
			handler: func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusConflict, "conflict")
			},
			then: []string{`"level":"WARN"`, `"status":409`, `"error":`},
		},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			buf := new(bytes.Buffer)
			e.Logger.SetOutput(buf)
			e.Logger.SetLevel(log.INFO)

			c, _ := httptestutil.Get(e, "/api/models")
			echoutil.LogHandlerFunc(testcase.handler)(c)

			logs := buf.String()
			for _, want := range testcase.then {
				if !strings.Contains(logs, want) {
					t.Errorf("log does not contain %s:\n%s", want, logs)
				}
			}
		})
	}
}
