// Package echoutil holds middlewares and settings shared by echo servers.
package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc is a middleware writing an access log in JSON for each request.
//
// Errors from next are rendered by the error handler of echo before logging,
// so that the log has the status code actually responded.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		since := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		entry := log.JSON{
			"method":  req.Method,
			"uri":     req.RequestURI,
			"status":  c.Response().Status,
			"bytes":   c.Response().Size,
			"latency": time.Since(since).String(),
		}
		if err != nil {
			entry["error"] = err.Error()
			c.Logger().Warnj(entry)
		} else {
			c.Logger().Infoj(entry)
		}
		return err
	}
}

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"":      log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// SetLevel sets the log level of e by name: debug, info, warn, error or off.
//
// Empty or unknown names fall back to warn.
func SetLevel(e *echo.Echo, loglevel string) {
	lvl, ok := levels[strings.ToLower(loglevel)]
	if !ok {
		lvl = log.WARN
	}
	e.Logger.SetLevel(lvl)
	if !ok {
		e.Logger.Warnf("unknown loglevel %q. fall back to warn", loglevel)
	}
}
