// Package fiber provides the Fiber middleware, error handling, compression and
// server-sent events support used by the clicker server.
package fiber

import (
	"fmt"
	"runtime/debug"
	"time"

	gofiber "github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const htmxLocalsKey = "clicker.htmx"

// SecurityHeadersMiddleware adds security headers.
func SecurityHeadersMiddleware() gofiber.Handler {
	return func(c *gofiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

// HTMXMiddleware records whether a request was issued by htmx (HX-Request
// header) and marks responses as varying on it, so caches keep fragments and
// full pages apart.
func HTMXMiddleware() gofiber.Handler {
	return func(c *gofiber.Ctx) error {
		c.Locals(htmxLocalsKey, c.Get("HX-Request") == "true")
		c.Vary("HX-Request")
		return c.Next()
	}
}

// IsHTMX returns true if the current request came from htmx.
func IsHTMX(c *gofiber.Ctx) bool {
	isHTMX, _ := c.Locals(htmxLocalsKey).(bool)
	return isHTMX
}

// RequestLoggerMiddleware logs one entry per request with method, path,
// status code and duration.
func RequestLoggerMiddleware(logger logrus.FieldLogger) gofiber.Handler {
	return func(c *gofiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*gofiber.Error); ok {
				status = fe.Code
			} else if ae, ok := AsAppError(err); ok {
				status = ae.StatusCode
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   status,
			"duration": time.Since(start),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
		return err
	}
}

// RecoveryMiddleware turns panics into internal AppErrors handled by the
// app's error handler. Stack traces are attached in dev mode.
func RecoveryMiddleware(devMode bool) gofiber.Handler {
	return func(c *gofiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				appErr := NewAppError(ErrorCodeInternal, fmt.Sprintf("panic: %v", r), gofiber.StatusInternalServerError)
				if devMode {
					appErr = appErr.WithStack(string(debug.Stack()))
				}
				err = appErr
			}
		}()
		return c.Next()
	}
}
