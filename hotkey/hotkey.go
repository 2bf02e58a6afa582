// Package hotkey binds chord descriptors such as "Ctrl+Shift+P" to actions
// and fires them from the page's global keydown stream.
//
// Matching is exact: every declared modifier pressed and no other. On a match
// the event's default action is prevented and its propagation stopped.
package hotkey

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/fault"
)

// Action identifies what a binding does. At most one binding per action.
type Action string

// ActionOpenPicker opens the prompt picker for the composer holding focus.
// It fires inside composers even when the binding asks for suppression.
const ActionOpenPicker Action = "open-picker"

// Options tune one binding.
type Options struct {
	// SuppressInComposer lets key events typed inside the active composer
	// through to the page instead of firing the action.
	SuppressInComposer bool
}

// Binding is a registered chord.
type Binding struct {
	Chord  Chord
	Action Action
	Opts   Options

	fn func(dom.KeyEvent)
}

// Dispatcher matches key events against the registered bindings.
type Dispatcher struct {
	mu         sync.RWMutex
	bindings   []*Binding
	inComposer func(dom.Element) bool
	guards     []dom.KeyGuard
	logger     *slog.Logger
}

// New creates an empty Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// SetComposerScope installs the test deciding whether an event target lies
// inside the active composer. Without one, no event counts as inside.
func (d *Dispatcher) SetComposerScope(fn func(dom.Element) bool) {
	d.mu.Lock()
	d.inComposer = fn
	d.mu.Unlock()
}

// Register binds chord to action, replacing the action's previous binding.
// A malformed chord, or one already bound to another action, is a config
// error.
func (d *Dispatcher) Register(chord string, action Action, fn func(dom.KeyEvent), opts Options) (*Binding, error) {
	c, err := ParseChord(chord)
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nil, fault.Config(fault.KindChord, chord, "empty action")
	}
	b := &Binding{Chord: c, Action: action, Opts: opts, fn: fn}

	d.mu.Lock()
	kept := d.bindings[:0:0]
	for _, x := range d.bindings {
		if x.Action == action {
			continue
		}
		if x.Chord == c {
			d.mu.Unlock()
			return nil, fault.Config(fault.KindChord, chord, fmt.Sprintf("already bound to %s", x.Action))
		}
		kept = append(kept, x)
	}
	d.bindings = append(kept, b)
	d.mu.Unlock()

	d.syncGuards()
	d.logger.Info("hotkey: bound", "chord", c.String(), "action", string(action))
	return b, nil
}

// Unregister drops the binding of action.
func (d *Dispatcher) Unregister(action Action) bool {
	d.mu.Lock()
	found := false
	for i, x := range d.bindings {
		if x.Action == action {
			d.bindings = append(d.bindings[:i:i], d.bindings[i+1:]...)
			found = true
			break
		}
	}
	d.mu.Unlock()
	if found {
		d.syncGuards()
	}
	return found
}

// Bindings returns the bindings in registration order.
func (d *Dispatcher) Bindings() []*Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Binding(nil), d.bindings...)
}

// Handle runs the action bound to ev's chord. It reports whether one fired.
func (d *Dispatcher) Handle(ev dom.KeyEvent) bool {
	d.mu.RLock()
	var hit *Binding
	for _, b := range d.bindings {
		if b.Chord.Matches(ev) {
			hit = b
			break
		}
	}
	inComposer := d.inComposer
	d.mu.RUnlock()
	if hit == nil {
		return false
	}

	if hit.Opts.SuppressInComposer && hit.Action != ActionOpenPicker &&
		inComposer != nil && ev.Target() != nil && inComposer(ev.Target()) {
		d.logger.Debug("hotkey: suppressed in composer", "action", string(hit.Action))
		return false
	}

	ev.PreventDefault()
	ev.StopPropagation()
	d.fire(hit, ev)
	return true
}

func (d *Dispatcher) fire(b *Binding, ev dom.KeyEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("hotkey: action fault", "action", string(b.Action), "error", fmt.Sprint(rec))
		}
	}()
	if b.fn != nil {
		b.fn(ev)
	}
}

// Attach listens to doc's keydown stream. Documents that implement
// dom.KeyGuard are told which chords to block page-side, now and on every
// later Register.
func (d *Dispatcher) Attach(doc dom.Document) (detach func()) {
	if g, ok := doc.(dom.KeyGuard); ok {
		d.mu.Lock()
		d.guards = append(d.guards, g)
		d.mu.Unlock()
		d.syncGuards()
	}
	remove := doc.OnKey(func(ev dom.KeyEvent) { d.Handle(ev) })
	return func() {
		remove()
		if g, ok := doc.(dom.KeyGuard); ok {
			d.mu.Lock()
			for i, x := range d.guards {
				if x == g {
					d.guards = append(d.guards[:i:i], d.guards[i+1:]...)
					break
				}
			}
			d.mu.Unlock()
			if err := g.GuardKeys(nil); err != nil {
				d.logger.Warn("hotkey: clear key guard", "error", err)
			}
		}
	}
}

func (d *Dispatcher) syncGuards() {
	d.mu.RLock()
	chords := make([]string, 0, len(d.bindings))
	for _, b := range d.bindings {
		chords = append(chords, b.Chord.String())
	}
	guards := append([]dom.KeyGuard(nil), d.guards...)
	d.mu.RUnlock()
	for _, g := range guards {
		if err := g.GuardKeys(chords); err != nil {
			d.logger.Warn("hotkey: key guard update failed", "error", err)
		}
	}
}
