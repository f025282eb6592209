// Package middleware provides HTTP middlewares for request logging and panic recovery.
package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/httplog/v3"
)

// Recovery recovers from panics in HTTP handlers and returns HTTP 500 to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				// Panics are logged by the Logging middleware
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// DefaultRequestHeaders are the request headers Logging records unless
// WithRequestHeaders overrides them.
var DefaultRequestHeaders = []string{"Content-Type", "X-Request-Id"}

// LoggingOption configures Logging.
type LoggingOption func(*httplog.Options)

// WithRequestHeaders replaces the request headers recorded per request.
// Headers carrying credentials must not be listed.
func WithRequestHeaders(headers ...string) LoggingOption {
	return func(o *httplog.Options) {
		o.LogRequestHeaders = slices.Clone(headers)
	}
}

// WithSkipPaths drops records of successful requests to paths. Failed
// requests are still logged.
func WithSkipPaths(paths ...string) LoggingOption {
	paths = slices.Clone(paths)
	return func(o *httplog.Options) {
		o.Skip = func(req *http.Request, respStatus int) bool {
			return respStatus < http.StatusBadRequest && slices.Contains(paths, req.URL.Path)
		}
	}
}

// WithLevel sets the minimum level of request records.
func WithLevel(level slog.Level) LoggingOption {
	return func(o *httplog.Options) {
		o.Level = level
	}
}

// Logging logs HTTP requests with method, path, status, and duration.
// Bodies are never logged.
func Logging(logger *slog.Logger, opts ...LoggingOption) func(http.Handler) http.Handler {
	o := &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		LogRequestHeaders:  slices.Clone(DefaultRequestHeaders),
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false, // Recovery handles panics, they are logged regardless
	}
	for _, opt := range opts {
		opt(o)
	}
	return httplog.RequestLogger(logger, o)
}

// Chain applies middlewares to a handler in the order they appear.
// The first middleware is the outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
