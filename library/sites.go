package library

import (
	"context"
	"fmt"

	"github.com/hazyhaar/promptdock/library/internal/store"
	"github.com/hazyhaar/promptdock/site"
)

// AddSite validates d and stores it. An invalid descriptor is a config
// error and nothing is stored. The returned descriptor carries the final ID.
func (l *Library) AddSite(ctx context.Context, d site.Descriptor) (site.Descriptor, error) {
	p, err := site.Compile(d)
	if err != nil {
		return site.Descriptor{}, fmt.Errorf("library: add site: %w", err)
	}
	d.ID = p.ID
	d.Selectors = p.Selectors
	d.Strategy = string(p.Strategy)
	if err := l.store.UpsertSite(ctx, descriptorRow(d)); err != nil {
		return site.Descriptor{}, fmt.Errorf("library: add site: %w", err)
	}
	l.logger.Info("library: site added", "id", d.ID, "pattern", d.Pattern)
	return d, nil
}

// RemoveSite deletes a stored site profile.
func (l *Library) RemoveSite(ctx context.Context, id string) error {
	ok, err := l.store.DeleteSite(ctx, id)
	if err != nil {
		return fmt.Errorf("library: remove site: %w", err)
	}
	if !ok {
		return fmt.Errorf("library: site %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSites returns every stored descriptor in registration order.
func (l *Library) ListSites(ctx context.Context) ([]site.Descriptor, error) {
	rows, err := l.store.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("library: list sites: %w", err)
	}
	out := make([]site.Descriptor, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowDescriptor(r))
	}
	return out, nil
}

// LoadSites registers every stored descriptor into reg. A descriptor that
// no longer compiles, or whose ID is already taken, is logged and skipped.
// Returns the number registered.
func (l *Library) LoadSites(ctx context.Context, reg *site.Registry) (int, error) {
	ds, err := l.ListSites(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range ds {
		if _, err := reg.RegisterCustom(d); err != nil {
			l.logger.Warn("library: stored site skipped", "id", d.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

func descriptorRow(d site.Descriptor) *store.SiteRow {
	return &store.SiteRow{
		ID:        d.ID,
		Pattern:   d.Pattern,
		Selectors: d.Selectors,
		Strategy:  d.Strategy,
		Extra:     d.Extra,
		Override:  d.Override,
	}
}

func rowDescriptor(r *store.SiteRow) site.Descriptor {
	return site.Descriptor{
		ID:        r.ID,
		Pattern:   r.Pattern,
		Selectors: r.Selectors,
		Strategy:  r.Strategy,
		Extra:     r.Extra,
		Override:  r.Override,
	}
}
