// Package dock attaches promptdock to one page: it resolves the site
// profile, follows the composers the page grows, binds the picker chord and
// writes prompts from the library into the composer the user is working in.
//
// Usage:
//
//	d, err := dock.New(dock.Config{OnOpenPicker: openPicker}, doc, lib, logger)
//	if err := d.Start(ctx); err != nil { ... }
//	defer d.Stop()
//	err = d.InsertPrompt(ctx, nil, promptID, resolver)
package dock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/promptdock/bus"
	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/hotkey"
	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/library"
	"github.com/hazyhaar/promptdock/site"
)

// ErrNoComposer is returned when an insertion has no target.
var ErrNoComposer = errors.New("dock: no composer on the page")

// Config configures a Dock.
type Config struct {
	Detect detect.Config

	// Settings overrides the library settings when non-zero.
	Settings library.Settings

	// SuppressInComposer applies to every binding except the picker chord.
	SuppressInComposer bool

	// Sites are registered after the presets and the stored user sites.
	Sites []site.Descriptor

	// OnOpenPicker runs when the picker chord fires, with the composer the
	// key came from (or the active one). It runs on the key event
	// goroutine; a picker that blocks must start its own.
	OnOpenPicker func(*detect.Composer)
}

// Dock is one attached page.
type Dock struct {
	cfg      Config
	doc      dom.Document
	lib      *library.Library
	registry *site.Registry
	detector *detect.Detector
	engine   *insert.Engine
	keys     *hotkey.Dispatcher
	bus      *bus.Bus
	logger   *slog.Logger

	mu       sync.RWMutex
	settings library.Settings
	active   *detect.Composer

	// insertMu serialises writes to the page.
	insertMu sync.Mutex

	cancel    context.CancelFunc
	teardown  []func()
	startOnce sync.Once
	stopOnce  sync.Once
}

// New wires the components. Nothing touches the page until Start.
func New(cfg Config, doc dom.Document, lib *library.Library, logger *slog.Logger) (*Dock, error) {
	if doc == nil {
		return nil, fmt.Errorf("dock: nil document")
	}
	if lib == nil {
		return nil, fmt.Errorf("dock: nil library")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Settings != (library.Settings{}) {
		if err := cfg.Settings.Validate(); err != nil {
			return nil, fmt.Errorf("dock: settings: %w", err)
		}
	}

	registry := site.NewDefault(logger)
	d := &Dock{
		cfg:      cfg,
		doc:      doc,
		lib:      lib,
		registry: registry,
		engine:   insert.New(logger),
		keys:     hotkey.New(logger),
		bus:      bus.New(logger),
		logger:   logger,
	}
	d.detector = detect.New(doc, registry.Resolve, cfg.Detect, logger)
	d.keys.SetComposerScope(func(el dom.Element) bool {
		c := d.ActiveComposer()
		return c != nil && el != nil && c.Element().Contains(el)
	})
	return d, nil
}

// Start loads the site profiles, binds the picker chord and starts
// detection. Detection stops when ctx ends or Stop is called.
func (d *Dock) Start(ctx context.Context) error {
	err := errors.New("dock: already started")
	d.startOnce.Do(func() { err = d.start(ctx) })
	return err
}

func (d *Dock) start(ctx context.Context) error {
	if _, err := d.lib.LoadSites(ctx, d.registry); err != nil {
		return fmt.Errorf("dock: load sites: %w", err)
	}
	for _, s := range d.cfg.Sites {
		if _, err := d.registry.RegisterCustom(s); err != nil {
			return fmt.Errorf("dock: site %s: %w", s.ID, err)
		}
	}

	settings := d.cfg.Settings
	if settings == (library.Settings{}) {
		var err error
		if settings, err = d.lib.Settings(ctx); err != nil {
			return fmt.Errorf("dock: %w", err)
		}
	}
	if err := d.ApplySettings(settings); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	unsub := d.detector.Subscribe(d.onDetected)
	detach := d.keys.Attach(d.doc)
	if err := d.detector.Start(ctx); err != nil {
		cancel()
		detach()
		unsub()
		return fmt.Errorf("dock: %w", err)
	}
	d.cancel = cancel
	d.teardown = []func(){unsub, detach}
	d.logger.Info("dock: started", "chord", settings.OpenPickerChord, "mode", string(settings.InsertMode))
	return nil
}

// SyncSites registers stored descriptors the registry does not hold yet
// and rescans when any were added. Sites removed from the library stay
// registered until restart.
func (d *Dock) SyncSites(ctx context.Context) (int, error) {
	ds, err := d.lib.ListSites(ctx)
	if err != nil {
		return 0, fmt.Errorf("dock: sync sites: %w", err)
	}
	n := 0
	for _, s := range ds {
		if d.registry.Get(s.ID) != nil {
			continue
		}
		if _, err := d.registry.RegisterCustom(s); err != nil {
			d.logger.Warn("dock: stored site skipped", "id", s.ID, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		d.Detect()
	}
	return n, nil
}

// Stop ends detection and removes the key listener.
func (d *Dock) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel == nil {
			return
		}
		d.cancel()
		d.detector.Wait()
		for i := len(d.teardown) - 1; i >= 0; i-- {
			d.teardown[i]()
		}
		d.logger.Info("dock: stopped")
	})
}

func (d *Dock) onDetected(c *detect.Composer) {
	d.mu.Lock()
	d.active = c
	d.mu.Unlock()
	d.bus.Publish(bus.ComposerDetected, c)
}

// ApplySettings switches the insert mode and rebinds the picker chord. An
// invalid chord leaves the previous binding in place.
func (d *Dock) ApplySettings(s library.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("dock: settings: %w", err)
	}
	if _, err := d.keys.Register(s.OpenPickerChord, hotkey.ActionOpenPicker, d.openPicker,
		hotkey.Options{SuppressInComposer: d.cfg.SuppressInComposer}); err != nil {
		return fmt.Errorf("dock: bind picker: %w", err)
	}
	d.mu.Lock()
	d.settings = s
	d.mu.Unlock()
	return nil
}

// Settings returns the settings in effect.
func (d *Dock) Settings() library.Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

func (d *Dock) openPicker(ev dom.KeyEvent) {
	c := d.detector.Containing(ev.Target())
	if c == nil {
		c = d.ActiveComposer()
	}
	if c != nil {
		d.Focus(c)
	}
	d.logger.Debug("dock: picker requested", "composer", c != nil)
	if d.cfg.OnOpenPicker != nil {
		d.cfg.OnOpenPicker(c)
	}
}

// --- Composers ---

// Bus returns the event bus carrying composer-detected and prompt-inserted.
func (d *Dock) Bus() *bus.Bus { return d.bus }

// Registry returns the site registry.
func (d *Dock) Registry() *site.Registry { return d.registry }

// Detect runs a detection pass now.
func (d *Dock) Detect() int { return d.detector.Detect() }

// Composers returns the known composers in discovery order.
func (d *Dock) Composers() []*detect.Composer { return d.detector.Known() }

// Composer returns the known composer with node id, or nil.
func (d *Dock) Composer(id dom.NodeID) *detect.Composer { return d.detector.Lookup(id) }

// OnComposer replays the known composers to fn, then reports new ones.
// fn must not call back into detection.
func (d *Dock) OnComposer(fn func(*detect.Composer)) (unsubscribe func()) {
	return d.detector.Subscribe(fn)
}

// OnInserted subscribes fn to prompt-inserted events.
func (d *Dock) OnInserted(fn func(promptID string)) (unsubscribe func()) {
	unsub, _ := d.bus.Subscribe(bus.PromptInserted, func(p any) {
		id, _ := p.(string)
		fn(id)
	})
	return unsub
}

// Focus makes c the target of insertions that name no composer.
func (d *Dock) Focus(c *detect.Composer) {
	d.mu.Lock()
	d.active = c
	d.mu.Unlock()
}

// ActiveComposer returns the focused or most recently detected composer
// that is still attached, falling back to the newest attached one.
func (d *Dock) ActiveComposer() *detect.Composer {
	d.mu.RLock()
	c := d.active
	d.mu.RUnlock()
	if c != nil && c.Element().Connected() {
		return c
	}
	known := d.detector.Known()
	for i := len(known) - 1; i >= 0; i-- {
		if known[i].Element().Connected() {
			return known[i]
		}
	}
	return nil
}

// --- Insertion ---

// InsertPrompt writes prompt id into c (the active composer when nil).
// Template placeholders are resolved through r first; that is the only
// step that may wait. On success the usage is recorded and prompt-inserted
// is published with the prompt id.
func (d *Dock) InsertPrompt(ctx context.Context, c *detect.Composer, id string, r library.VariableResolver) error {
	p, err := d.lib.GetPrompt(ctx, id)
	if err != nil {
		return fmt.Errorf("dock: insert prompt: %w", err)
	}
	text, err := library.Render(ctx, p, r)
	if err != nil {
		return fmt.Errorf("dock: insert prompt: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dock: insert prompt: %w", err)
	}

	target, err := d.write(c, text, d.Settings().InsertMode)
	if err != nil {
		return fmt.Errorf("dock: insert prompt %s: %w", id, err)
	}

	if err := d.lib.RecordUsage(ctx, id); err != nil {
		d.logger.Warn("dock: usage not recorded", "prompt", id, "error", err)
	}
	d.logger.Info("dock: prompt inserted", "prompt", id, "site", target.SiteID(), "node", int64(target.ID()))
	d.bus.Publish(bus.PromptInserted, id)
	return nil
}

// InsertText writes text into c (the active composer when nil). An empty
// mode uses the configured one. The target becomes the active composer.
func (d *Dock) InsertText(c *detect.Composer, text string, mode insert.Mode) error {
	if mode == "" {
		mode = d.Settings().InsertMode
	}
	if _, err := d.write(c, text, mode); err != nil {
		return fmt.Errorf("dock: insert text: %w", err)
	}
	return nil
}

func (d *Dock) write(c *detect.Composer, text string, mode insert.Mode) (*detect.Composer, error) {
	if c == nil {
		c = d.ActiveComposer()
	}
	if c == nil {
		return nil, ErrNoComposer
	}
	d.insertMu.Lock()
	defer d.insertMu.Unlock()
	if err := d.engine.Insert(c, text, mode); err != nil {
		return nil, err
	}
	d.Focus(c)
	return c, nil
}
