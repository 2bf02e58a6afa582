package store

import (
	"context"
	"database/sql"
	"errors"
)

// Category groups prompts. ParentID is empty for top-level categories.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Sort     int    `json:"sort"`
}

// UpsertCategory inserts or replaces a category.
func (s *Store) UpsertCategory(ctx context.Context, c *Category) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO categories (id, name, parent_id, sort) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, parent_id = excluded.parent_id, sort = excluded.sort`,
		c.ID, c.Name, c.ParentID, c.Sort)
	return err
}

// PutCategory writes c inside tx. Used by import.
func (s *Store) PutCategory(ctx context.Context, tx *sql.Tx, c *Category) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories (id, name, parent_id, sort) VALUES (?,?,?,?)`,
		c.ID, c.Name, c.ParentID, c.Sort)
	return err
}

// GetCategory returns nil, nil if not found.
func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	c := &Category{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, parent_id, sort FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.ParentID, &c.Sort)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category. Prompts and child categories pointing
// at it are moved to the top level in the same transaction.
func (s *Store) DeleteCategory(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE prompts SET category_id = '' WHERE category_id = ?`, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE categories SET parent_id = '' WHERE parent_id = ?`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListCategories returns every category ordered by sort then name.
func (s *Store) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, parent_id, sort FROM categories ORDER BY sort, name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.Sort); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
