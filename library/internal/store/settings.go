package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetSetting returns the raw JSON value for key, or "" if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetSetting stores the raw JSON value for key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return putSetting(ctx, s.DB, key, value)
}

// PutSetting stores key inside tx. Used by import.
func (s *Store) PutSetting(ctx context.Context, tx *sql.Tx, key, value string) error {
	return putSetting(ctx, tx, key, value)
}

func putSetting(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// AllSettings returns every stored key/value pair.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
