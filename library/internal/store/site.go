package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// SiteRow is a stored user site profile.
type SiteRow struct {
	ID        string
	Pattern   string
	Selectors []string
	Strategy  string
	Extra     map[string]string
	Override  bool
	CreatedAt int64
}

// UpsertSite inserts or replaces a site row. New rows always sort after
// existing ones; the original created_at is kept on replace so
// registration order is stable.
func (s *Store) UpsertSite(ctx context.Context, r *SiteRow) error {
	return putSite(ctx, s.DB, r)
}

// PutSite writes r inside tx. Used by import.
func (s *Store) PutSite(ctx context.Context, tx *sql.Tx, r *SiteRow) error {
	return putSite(ctx, tx, r)
}

func putSite(ctx context.Context, ex execer, r *SiteRow) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	sels, _ := json.Marshal(r.Selectors)
	extra, _ := json.Marshal(r.Extra)
	if r.Extra == nil {
		extra = []byte("{}")
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO sites (id, pattern, selectors, strategy, extra, override, created_at)
		VALUES (?,?,?,?,?,?, MAX(?, COALESCE((SELECT MAX(created_at) FROM sites), 0) + 1))
		ON CONFLICT(id) DO UPDATE SET
			pattern = excluded.pattern,
			selectors = excluded.selectors,
			strategy = excluded.strategy,
			extra = excluded.extra,
			override = excluded.override`,
		r.ID, r.Pattern, string(sels), r.Strategy, string(extra), boolInt(r.Override), r.CreatedAt)
	return err
}

// DeleteSite removes a site row.
func (s *Store) DeleteSite(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteAll empties every library table inside tx. Used by import.
func (s *Store) DeleteAll(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"prompts", "categories", "settings", "sites"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

// ListSites returns every site row in registration order.
func (s *Store) ListSites(ctx context.Context) ([]*SiteRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, pattern, selectors, strategy, extra, override, created_at
		FROM sites ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SiteRow
	for rows.Next() {
		r := &SiteRow{}
		var sels, extra string
		var override int
		if err := rows.Scan(&r.ID, &r.Pattern, &sels, &r.Strategy, &extra, &override, &r.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(sels), &r.Selectors)
		json.Unmarshal([]byte(extra), &r.Extra)
		r.Override = override != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
