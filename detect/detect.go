// Package detect finds the composer elements of the current page and tracks
// them by element identity.
//
// A pass queries every selector of the resolved site profile in document
// order and publishes each element not seen before. Passes are triggered by a
// subtree mutation observer, by a slow poll, and once at start. Elements that
// leave the document are evicted lazily on the next pass; no removal event is
// sent.
//
// Subscribers run synchronously on the goroutine running the pass. They must
// not call Detect or Subscribe from inside the callback.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/site"
)

// ResolveFunc returns the profile applying to url, or nil.
type ResolveFunc func(url string) *site.Profile

// Config tunes the trigger schedule.
type Config struct {
	// PollInterval is the period of the unconditional safety-net pass.
	PollInterval time.Duration `yaml:"poll_interval"`
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
}

type subscriber struct {
	id int
	fn func(*Composer)
}

// Detector discovers composers on one document.
type Detector struct {
	doc     dom.Document
	resolve ResolveFunc
	cfg     Config
	logger  *slog.Logger

	// passMu serialises passes and subscriptions so that a replay never
	// interleaves with a live emission.
	passMu sync.Mutex
	subs   []subscriber
	nextID int

	mu        sync.RWMutex
	known     []*Composer
	index     map[dom.NodeID]*Composer
	observing bool

	wg sync.WaitGroup
}

// New creates a Detector. resolve is usually (*site.Registry).Resolve.
func New(doc dom.Document, resolve ResolveFunc, cfg Config, logger *slog.Logger) *Detector {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		doc:     doc,
		resolve: resolve,
		cfg:     cfg,
		logger:  logger,
		index:   make(map[dom.NodeID]*Composer),
	}
}

// Start installs the mutation observer, runs the seeding pass and starts the
// poll loop. When the document has no body yet the observer is installed on
// the first tick that finds one. Everything stops when ctx ends.
func (d *Detector) Start(ctx context.Context) error {
	if err := d.observe(ctx); err != nil {
		return err
	}
	d.Detect()

	d.wg.Add(1)
	go d.loop(ctx)
	return nil
}

// Wait blocks until the poll loop started by Start has exited.
func (d *Detector) Wait() { d.wg.Wait() }

func (d *Detector) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.observe(ctx); err != nil {
				d.logger.Warn("detect: observer install failed", "error", err)
			}
			d.Detect()
		}
	}
}

// observe installs the observer once. A missing body is not an error.
func (d *Detector) observe(ctx context.Context) error {
	d.mu.RLock()
	done := d.observing
	d.mu.RUnlock()
	if done {
		return nil
	}
	err := d.doc.Observe(ctx, func() { d.Detect() })
	if errors.Is(err, dom.ErrNoBody) {
		d.logger.Debug("detect: no body yet, observer deferred")
		return nil
	}
	if err != nil {
		return fmt.Errorf("detect: observe: %w", err)
	}
	d.mu.Lock()
	d.observing = true
	d.mu.Unlock()
	d.logger.Debug("detect: observer installed")
	return nil
}

// Observing reports whether the mutation observer is installed.
func (d *Detector) Observing() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.observing
}

// Detect runs one detection pass and returns the number of new composers.
func (d *Detector) Detect() int {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	url, err := d.doc.URL()
	if err != nil {
		d.logger.Debug("detect: url unavailable", "error", err)
		return 0
	}
	profile := d.resolve(url)
	if profile == nil {
		return 0
	}
	d.prune()

	fresh := 0
	for _, sel := range profile.Selectors {
		els, err := d.doc.QueryAll(sel)
		if err != nil {
			d.logger.Warn("detect: query failed", "site", profile.ID, "selector", sel, "error", err)
			continue
		}
		for _, el := range els {
			kind := el.Kind()
			if kind == dom.KindUnsupported {
				continue
			}
			d.mu.Lock()
			if _, seen := d.index[el.ID()]; seen {
				d.mu.Unlock()
				continue
			}
			c := &Composer{el: el, strategy: strategyFor(profile.Strategy, kind), siteID: profile.ID}
			d.index[el.ID()] = c
			d.known = append(d.known, c)
			d.mu.Unlock()

			d.logger.Info("detect: composer detected",
				"site", c.siteID, "tag", el.Tag(), "strategy", string(c.strategy), "node", int64(c.ID()))
			d.emit(c)
			fresh++
		}
	}
	return fresh
}

// prune evicts composers whose element left the document.
func (d *Detector) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.known[:0]
	for _, c := range d.known {
		if c.el.Connected() {
			kept = append(kept, c)
			continue
		}
		delete(d.index, c.ID())
	}
	clear(d.known[len(kept):])
	d.known = kept
}

// emit runs every subscriber in order. Caller holds passMu.
func (d *Detector) emit(c *Composer) {
	for _, s := range d.subs {
		d.deliver(s, c)
	}
}

func (d *Detector) deliver(s subscriber, c *Composer) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("detect: subscriber fault", "subscriber", s.id, "error", fmt.Sprint(rec))
		}
	}()
	s.fn(c)
}

// Subscribe replays every known composer to fn in discovery order, then
// delivers future discoveries. The returned function unsubscribes.
func (d *Detector) Subscribe(fn func(*Composer)) (unsubscribe func()) {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	d.nextID++
	s := subscriber{id: d.nextID, fn: fn}
	for _, c := range d.Known() {
		d.deliver(s, c)
	}
	d.subs = append(d.subs, s)

	return func() {
		d.passMu.Lock()
		defer d.passMu.Unlock()
		for i, x := range d.subs {
			if x.id == s.id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Known returns the known composers in discovery order.
func (d *Detector) Known() []*Composer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Composer(nil), d.known...)
}

// Lookup returns the composer for node id, or nil.
func (d *Detector) Lookup(id dom.NodeID) *Composer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index[id]
}

// Containing returns the known composer whose element is el or an ancestor
// of el, or nil.
func (d *Detector) Containing(el dom.Element) *Composer {
	if el == nil {
		return nil
	}
	for _, c := range d.Known() {
		if c.el.Contains(el) {
			return c
		}
	}
	return nil
}
