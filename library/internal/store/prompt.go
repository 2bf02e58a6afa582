package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Prompt is a saved prompt.
type Prompt struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	CategoryID string   `json:"category_id,omitempty"`
	UsageCount int      `json:"usage_count"`
	LastUsedAt int64    `json:"last_used_at,omitempty"`
	CreatedAt  int64    `json:"created_at"`
	UpdatedAt  int64    `json:"updated_at"`
}

const promptCols = `id, name, title, content, tags, category_id, usage_count, last_used_at, created_at, updated_at`

// UpsertPrompt inserts p or updates the editable fields of an existing row.
// Usage statistics and created_at of an existing row are kept.
func (s *Store) UpsertPrompt(ctx context.Context, p *Prompt) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tags, _ := json.Marshal(p.Tags)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO prompts (`+promptCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			category_id = excluded.category_id,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Title, p.Content, string(tags), p.CategoryID,
		p.UsageCount, p.LastUsedAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// PutPrompt writes p verbatim, statistics included. Used by import.
func (s *Store) PutPrompt(ctx context.Context, tx *sql.Tx, p *Prompt) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tags, _ := json.Marshal(p.Tags)
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO prompts (`+promptCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Title, p.Content, string(tags), p.CategoryID,
		p.UsageCount, p.LastUsedAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPrompt retrieves a prompt by ID. Returns nil, nil if not found.
func (s *Store) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+promptCols+` FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// DeletePrompt removes a prompt. Returns false if it did not exist.
func (s *Store) DeletePrompt(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListPrompts returns prompts in creation order. A non-empty filter keeps
// prompts whose name or title contains it, case-insensitively.
func (s *Store) ListPrompts(ctx context.Context, filter string) ([]*Prompt, error) {
	query := `SELECT ` + promptCols + ` FROM prompts`
	var args []any
	if f := strings.TrimSpace(filter); f != "" {
		query += ` WHERE instr(lower(name), lower(?)) > 0 OR instr(lower(title), lower(?)) > 0`
		args = append(args, f, f)
	}
	query += ` ORDER BY created_at, id`
	return s.queryPrompts(ctx, query, args...)
}

// RecentPrompts returns up to limit used prompts, most recently used first.
func (s *Store) RecentPrompts(ctx context.Context, limit int) ([]*Prompt, error) {
	return s.queryPrompts(ctx, `SELECT `+promptCols+` FROM prompts
		WHERE last_used_at > 0 ORDER BY last_used_at DESC, id LIMIT ?`, limit)
}

// FrequentPrompts returns up to limit used prompts, most used first.
func (s *Store) FrequentPrompts(ctx context.Context, limit int) ([]*Prompt, error) {
	return s.queryPrompts(ctx, `SELECT `+promptCols+` FROM prompts
		WHERE usage_count > 0 ORDER BY usage_count DESC, last_used_at DESC, id LIMIT ?`, limit)
}

// RecordUsage bumps the usage count and stamps last_used_at.
func (s *Store) RecordUsage(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE prompts SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		at.UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) queryPrompts(ctx context.Context, query string, args ...any) ([]*Prompt, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(sc scanner) (*Prompt, error) {
	p := &Prompt{}
	var tags string
	if err := sc.Scan(&p.ID, &p.Name, &p.Title, &p.Content, &tags, &p.CategoryID,
		&p.UsageCount, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		p.Tags = []string{}
	}
	return p, nil
}
