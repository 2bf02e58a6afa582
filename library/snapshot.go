package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hazyhaar/promptdock/dbopen"
	"github.com/hazyhaar/promptdock/site"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = 1

// Snapshot is the whole library as exported.
type Snapshot struct {
	Version    int               `json:"version"`
	Prompts    []*Prompt         `json:"prompts"`
	Categories []*Category       `json:"categories"`
	Settings   Settings          `json:"settings"`
	Sites      []site.Descriptor `json:"sites"`
}

// Snapshot reads the whole library.
func (l *Library) Snapshot(ctx context.Context) (*Snapshot, error) {
	prompts, err := l.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := l.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := l.Settings(ctx)
	if err != nil {
		return nil, err
	}
	sites, err := l.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:    SnapshotVersion,
		Prompts:    orEmpty(prompts),
		Categories: orEmpty(cats),
		Settings:   settings,
		Sites:      orEmpty(sites),
	}, nil
}

// Export writes the snapshot as indented JSON.
func (l *Library) Export(ctx context.Context, w io.Writer) error {
	snap, err := l.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("library: export: %w", err)
	}
	return nil
}

// Import replaces the whole library with the snapshot read from r. The
// snapshot is validated before anything is written; the replacement is a
// single transaction.
func (l *Library) Import(ctx context.Context, r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("library: import: decode: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("library: import: unsupported version %d", snap.Version)
	}
	if err := snap.Settings.Validate(); err != nil {
		return fmt.Errorf("library: import: %w", err)
	}
	for i, d := range snap.Sites {
		p, err := site.Compile(d)
		if err != nil {
			return fmt.Errorf("library: import: site %d: %w", i, err)
		}
		snap.Sites[i].ID = p.ID
	}
	for i, p := range snap.Prompts {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("library: import: prompt %d: id and name required", i)
		}
	}

	settings := map[string]any{
		keyInsertMode:          string(snap.Settings.InsertMode),
		keyOpenPickerChord:     snap.Settings.OpenPickerChord,
		keyShowRecommendations: snap.Settings.ShowRecommendations,
	}

	err := dbopen.RunTx(ctx, l.store.DB, func(tx *sql.Tx) error {
		if err := l.store.DeleteAll(ctx, tx); err != nil {
			return err
		}
		for _, c := range snap.Categories {
			if err := l.store.PutCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, p := range snap.Prompts {
			if err := l.store.PutPrompt(ctx, tx, p); err != nil {
				return err
			}
		}
		for k, v := range settings {
			data, _ := json.Marshal(v)
			if err := l.store.PutSetting(ctx, tx, k, string(data)); err != nil {
				return err
			}
		}
		base := l.now().UnixMilli()
		for i, d := range snap.Sites {
			row := descriptorRow(d)
			row.CreatedAt = base + int64(i)
			if err := l.store.PutSite(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("library: import: %w", err)
	}
	l.logger.Info("library: snapshot imported",
		"prompts", len(snap.Prompts), "categories", len(snap.Categories), "sites", len(snap.Sites))
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
