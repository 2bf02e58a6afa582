package kit

import (
	"context"
	"sync"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	notesKey
)

// WithTransport records the surface a call came in on: "http", "mcp" or
// "cli".
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport returns the recorded surface, "cli" when none was set.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return "cli"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// notes collects key/value pairs an endpoint adds while it runs, for the
// log line written when it returns.
type notes struct {
	mu sync.Mutex
	kv []any
}

func withNotes(ctx context.Context) (context.Context, *notes) {
	n := &notes{}
	return context.WithValue(ctx, notesKey, n), n
}

// Annotate adds key/value pairs to the log line of the enclosing Logging
// middleware, such as the composer an insertion resolved to. Outside
// Logging it does nothing.
func Annotate(ctx context.Context, kv ...any) {
	n, ok := ctx.Value(notesKey).(*notes)
	if !ok {
		return
	}
	n.mu.Lock()
	n.kv = append(n.kv, kv...)
	n.mu.Unlock()
}

func (n *notes) pairs() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]any(nil), n.kv...)
}
