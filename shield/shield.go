// Package shield holds the HTTP middleware in front of the local API. The
// API drives a logged-in browser, so it answers loopback clients only.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxBody bounds every request body. Reads past it fail and the handlers'
// JSON decoding turns that into a 400.
const MaxBody = 1 << 20

// DefaultStack returns the middleware stack for the local API, outermost
// first. HEAD falls through to the GET routes (chi's GetHead), so the
// stack must be mounted on a chi router.
func DefaultStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		LocalOnly,
		middleware.GetHead,
		SecurityHeaders,
		middleware.RequestSize(MaxBody),
		RequestID(logger),
	}
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
