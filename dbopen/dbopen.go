// Package dbopen opens the SQLite file backing the prompt library.
//
// The pragmas travel in the DSN as _pragma parameters, so every pooled
// connection gets them, not only the first:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 5000
//	synchronous  = NORMAL
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	_ "modernc.org/sqlite"
)

const memory = ":memory:"

type options struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
	schemas     []string
}

// Option customises Open.
type Option func(*options)

// WithBusyTimeout sets busy_timeout in milliseconds. Default: 5000.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithSynchronous sets the synchronous level. Default: NORMAL.
func WithSynchronous(level string) Option { return func(o *options) { o.synchronous = level } }

// WithMkdirAll creates the directory holding the database file.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithSchema adds DDL run once the database is open. Statements must be
// idempotent (CREATE ... IF NOT EXISTS).
func WithSchema(ddl string) Option { return func(o *options) { o.schemas = append(o.schemas, ddl) } }

// DSN returns the modernc.org/sqlite data source name for path.
func DSN(path string, opts ...Option) string {
	o := options{busyTimeout: 5_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}
	return o.dsn(path)
}

func (o options) dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout("+strconv.Itoa(o.busyTimeout)+")")
	q.Add("_pragma", "synchronous("+o.synchronous+")")
	if path != memory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database at path. ":memory:" gives a private database
// held by a single connection.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := options{busyTimeout: 5_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}

	if o.mkdirAll && path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", o.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if path == memory {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	for _, ddl := range o.schemas {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema: %w", err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database closed when the test ends.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
