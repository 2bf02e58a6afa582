// Package store provides the SQLite persistence layer for the prompt library.
package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/promptdock/dbopen"
)

// Store is the library database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the library database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
