// Package watch notices writes that another process commits to the prompt
// library and runs a reload once they settle. "promptdock prompts add" or
// "promptdock sites add" run next to a live dock this way.
package watch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Options tunes the poll loop.
type Options struct {
	// Interval between two PRAGMA data_version reads. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before reload runs.
	// Zero reloads on the poll that saw the change.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls one database.
type Watcher struct {
	db      *sql.DB
	opts    Options
	version atomic.Int64
	reloads atomic.Int64
}

// New creates a Watcher. Call Run to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Reloads returns how many reloads succeeded.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Version returns the data version the last successful reload saw.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Run polls until ctx is done. A failed reload leaves the version where it
// was, so the next poll retries it.
//
// data_version is per connection, so Run holds one connection for its whole
// life. Writes made through that same connection are not reported.
func (w *Watcher) Run(ctx context.Context, reload func(context.Context) error) error {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("watch: pin connection: %w", err)
	}
	defer conn.Close()

	v, err := DataVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("watch: initial version: %w", err)
	}
	w.version.Store(v)

	log := w.opts.Logger
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var settle <-chan time.Time
	var timer *time.Timer
	pending := v
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			cur, err := DataVersion(ctx, conn)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == pending {
				if settle == nil && pending != w.version.Load() {
					w.fire(ctx, reload, pending)
				}
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, reload, pending)
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			settle = timer.C
			log.Debug("watch: change seen, settling", "version", cur)

		case <-settle:
			settle = nil
			w.fire(ctx, reload, pending)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, reload func(context.Context) error, v int64) {
	if v == w.version.Load() {
		return
	}
	start := time.Now()
	if err := reload(ctx); err != nil {
		w.opts.Logger.Error("watch: reload failed", "version", v, "error", err)
		return
	}
	w.version.Store(v)
	w.reloads.Add(1)
	w.opts.Logger.Info("watch: reloaded", "version", v, "duration", time.Since(start))
}

// DataVersion reads PRAGMA data_version on conn. The value moves when a
// different connection commits to the same file.
func DataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
