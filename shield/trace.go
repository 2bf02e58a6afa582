package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/promptdock/idgen"
	"github.com/hazyhaar/promptdock/kit"
)

// RequestID tags each request with an ID, taken from X-Request-ID when the
// client sends one. The ID goes into the context (kit.WithRequestID), the
// response headers and a per-request logger stored under LoggerKey.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = idgen.New()
			}
			w.Header().Set("X-Request-ID", id)

			ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), "http")
			reqLogger := logger.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx = context.WithValue(ctx, LoggerKey, reqLogger)
			reqLogger.Debug("shield: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
