// Package library is the persistent prompt collection: prompts, categories,
// user settings and user site profiles, stored in SQLite.
//
// Usage:
//
//	lib, err := library.New(&library.Config{DBPath: "promptdock.db"}, logger)
//	defer lib.Close()
//	p, err := lib.SavePrompt(ctx, &library.Prompt{Name: "review", Content: "Review {{file}}"})
//	lib.RegisterMCP(mcpServer)
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/promptdock/dbopen"
	"github.com/hazyhaar/promptdock/idgen"
	"github.com/hazyhaar/promptdock/library/internal/store"
)

var (
	// ErrNotFound is returned when a prompt, category or site does not exist.
	ErrNotFound = errors.New("library: not found")
	// ErrInvalid is returned for records missing a required field.
	ErrInvalid = errors.New("library: invalid record")
)

// Library is the prompt library.
type Library struct {
	store  *store.Store
	logger *slog.Logger
	config *Config
	newID  idgen.Generator
	now    func() time.Time
}

// New opens the library database and applies the schema.
func New(cfg *Config, logger *slog.Logger) (*Library, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("library: open: %w", err)
	}
	return newLibrary(s, cfg, logger), nil
}

// NewWithDB wraps an already opened database. The schema is applied.
func NewWithDB(db *sql.DB, cfg *Config, logger *slog.Logger) (*Library, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if _, err := db.Exec(store.Schema); err != nil {
		return nil, fmt.Errorf("library: schema: %w", err)
	}
	return newLibrary(&store.Store{DB: db}, cfg, logger), nil
}

func newLibrary(s *store.Store, cfg *Config, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{store: s, logger: logger, config: cfg, newID: idgen.Default, now: time.Now}
}

// DB returns the underlying database, for change polling.
func (l *Library) DB() *sql.DB { return l.store.DB }

// Close closes the database.
func (l *Library) Close() error {
	return l.store.Close()
}

// --- Prompt operations ---

// SavePrompt inserts p, or updates it when p.ID already exists. An empty ID
// gets a fresh one. Name and content are required.
func (l *Library) SavePrompt(ctx context.Context, p *Prompt) (*Prompt, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("library: save prompt: %w: empty name", ErrInvalid)
	}
	if p.Content == "" {
		return nil, fmt.Errorf("library: save prompt %q: %w: empty content", p.Name, ErrInvalid)
	}
	if p.ID == "" {
		p.ID = l.newID()
	}
	if p.CategoryID != "" {
		c, err := l.store.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("library: save prompt: %w", err)
		}
		if c == nil {
			return nil, fmt.Errorf("library: save prompt: category %s: %w", p.CategoryID, ErrNotFound)
		}
	}
	if err := l.store.UpsertPrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("library: save prompt: %w", err)
	}
	saved, err := l.store.GetPrompt(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("library: save prompt: %w", err)
	}
	l.logger.Debug("library: prompt saved", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

// GetPrompt returns the prompt or ErrNotFound.
func (l *Library) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	p, err := l.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("library: get prompt: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("library: prompt %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// DeletePrompt removes a prompt. Deleting a missing prompt is ErrNotFound.
func (l *Library) DeletePrompt(ctx context.Context, id string) error {
	ok, err := l.store.DeletePrompt(ctx, id)
	if err != nil {
		return fmt.Errorf("library: delete prompt: %w", err)
	}
	if !ok {
		return fmt.Errorf("library: prompt %s: %w", id, ErrNotFound)
	}
	l.logger.Debug("library: prompt deleted", "id", id)
	return nil
}

// ListPrompts returns every prompt in creation order.
func (l *Library) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	return l.Search(ctx, "")
}

// Search returns prompts whose name or title contains query,
// case-insensitively. An empty query lists everything.
func (l *Library) Search(ctx context.Context, query string) ([]*Prompt, error) {
	ps, err := l.store.ListPrompts(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("library: search: %w", err)
	}
	return ps, nil
}

// Recommend returns the most recently used prompts followed by the most
// used ones, without duplicates. Prompts never used are not recommended.
func (l *Library) Recommend(ctx context.Context) ([]*Prompt, error) {
	n := l.config.RecommendCount
	recent, err := l.store.RecentPrompts(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("library: recommend: %w", err)
	}
	frequent, err := l.store.FrequentPrompts(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("library: recommend: %w", err)
	}

	seen := make(map[string]bool, 2*n)
	out := make([]*Prompt, 0, 2*n)
	for _, p := range append(recent, frequent...) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// RecordUsage bumps the usage counter and the last-used time of a prompt.
func (l *Library) RecordUsage(ctx context.Context, id string) error {
	ok, err := l.store.RecordUsage(ctx, id, l.now())
	if err != nil {
		return fmt.Errorf("library: record usage: %w", err)
	}
	if !ok {
		return fmt.Errorf("library: prompt %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Category operations ---

// SaveCategory inserts or updates a category. An empty ID gets a fresh one.
func (l *Library) SaveCategory(ctx context.Context, c *Category) (*Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("library: save category: %w: empty name", ErrInvalid)
	}
	if c.ID == "" {
		c.ID = l.newID()
	}
	if c.ParentID == c.ID {
		return nil, fmt.Errorf("library: save category %s: %w: parent is itself", c.ID, ErrInvalid)
	}
	if err := l.store.UpsertCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("library: save category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category. Its prompts and children move to the
// top level.
func (l *Library) DeleteCategory(ctx context.Context, id string) error {
	var found bool
	err := dbopen.RunTx(ctx, l.store.DB, func(tx *sql.Tx) error {
		var err error
		found, err = l.store.DeleteCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("library: delete category: %w", err)
	}
	if !found {
		return fmt.Errorf("library: category %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListCategories returns every category.
func (l *Library) ListCategories(ctx context.Context) ([]*Category, error) {
	cs, err := l.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("library: list categories: %w", err)
	}
	return cs, nil
}
