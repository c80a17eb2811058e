package fiber

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
)

// ErrorCode represents an error code.
type ErrorCode string

const (
	ErrorCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeBadRequest  ErrorCode = "BAD_REQUEST"
	ErrorCodeMethod      ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Stack      string    `json:"stack,omitempty"`
	StatusCode int       `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new application error.
func NewAppError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithStack adds a stack trace to the error.
func (e *AppError) WithStack(stack string) *AppError {
	e.Stack = stack
	return e
}

// AsAppError converts an error to AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// codeForStatus maps Fiber status errors to error codes.
func codeForStatus(status int) ErrorCode {
	switch status {
	case fiber.StatusNotFound:
		return ErrorCodeNotFound
	case fiber.StatusBadRequest:
		return ErrorCodeBadRequest
	case fiber.StatusMethodNotAllowed:
		return ErrorCodeMethod
	case fiber.StatusServiceUnavailable:
		return ErrorCodeUnavailable
	default:
		return ErrorCodeInternal
	}
}

// ErrorHandlerConfig holds error handler configuration.
type ErrorHandlerConfig struct {
	// DevMode exposes stack traces and internal messages.
	DevMode bool
	// Stylesheet is linked from the HTML error page. Empty links nothing.
	Stylesheet string
	// OnError is called for every handled error.
	OnError func(*fiber.Ctx, *AppError)
}

// ErrorHandler creates a Fiber error handler.
func ErrorHandler(config ErrorHandlerConfig) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &fiberErr):
			appErr = NewAppError(codeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code)
		default:
			appErr = NewAppError(ErrorCodeInternal, err.Error(), fiber.StatusInternalServerError)
			if config.DevMode {
				appErr = appErr.WithStack(string(debug.Stack()))
			}
		}

		if config.OnError != nil {
			config.OnError(c, appErr)
		}

		// internal details stay in the logs outside dev mode
		message := appErr.Message
		if appErr.StatusCode >= fiber.StatusInternalServerError && !config.DevMode {
			message = "Internal server error"
		}

		if strings.HasPrefix(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
			return c.Status(appErr.StatusCode).JSON(fiber.Map{
				"error":   appErr.Code,
				"message": message,
			})
		}
		return renderErrorPage(c, appErr, message, config)
	}
}

// renderErrorPage renders an error page.
func renderErrorPage(c *fiber.Ctx, appErr *AppError, message string, config ErrorHandlerConfig) error {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"><title>Error - `)
	b.WriteString(string(appErr.Code))
	b.WriteString(`</title>`)
	if config.Stylesheet != "" {
		fmt.Fprintf(&b, `<link rel="stylesheet" href="%s">`, templ.EscapeString(config.Stylesheet))
	}
	b.WriteString(`</head><body><main class="p-8">`)
	fmt.Fprintf(&b, `<h1 class="text-red-500">%d %s</h1>`, appErr.StatusCode, appErr.Code)
	fmt.Fprintf(&b, `<p>%s</p>`, templ.EscapeString(message))
	if config.DevMode && appErr.Stack != "" {
		fmt.Fprintf(&b, `<pre>%s</pre>`, templ.EscapeString(appErr.Stack))
	}
	b.WriteString(`<a href="/">Go Home</a></main></body></html>`)

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(appErr.StatusCode).SendString(b.String())
}

// NotFoundHandler creates a 404 handler.
func NotFoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return NewAppError(ErrorCodeNotFound, "Page not found: "+c.Path(), fiber.StatusNotFound)
	}
}
