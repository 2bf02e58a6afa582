// Package kit is the transport-neutral endpoint layer shared by the MCP
// tools and the HTTP routes. An operation is written once as an Endpoint and
// mounted on either surface.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is one operation taking a decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs each call with its transport, request id, duration and
// whatever the endpoint passed to Annotate.
func Logging(logger *slog.Logger, op string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			ctx, n := withNotes(ctx)
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration", time.Since(start),
			}
			attrs = append(attrs, n.pairs()...)
			if err != nil {
				logger.Warn("kit: endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("kit: endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}
