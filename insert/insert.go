// Package insert writes text into a composer and synthesises the events the
// host framework listens for, so that its own state picks up the change.
//
// Form controls are assigned through the native value setter, then receive
// one bubbling input event. ContentEditable roots are edited as text nodes
// and also receive one bubbling input event; when the composer's strategy is
// composition, the input event is framed by compositionstart,
// compositionupdate and compositionend carrying the payload.
//
// The payload is literal text. It is never parsed as HTML.
package insert

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/fault"
	"github.com/hazyhaar/promptdock/site"
)

// Mode selects where the payload goes.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModePrefix  Mode = "prefix"
	ModeSuffix  Mode = "suffix"
	ModeCursor  Mode = "cursor"
)

// Modes lists the modes in display order.
var Modes = []Mode{ModeCursor, ModeReplace, ModePrefix, ModeSuffix}

// ParseMode validates a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeReplace, ModePrefix, ModeSuffix, ModeCursor:
		return m, nil
	}
	return "", fault.Config(fault.KindMode, s, "want replace, prefix, suffix or cursor")
}

// Engine performs insertions. The zero value is not usable; call New.
type Engine struct {
	logger *slog.Logger
}

// New creates an Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Insert writes payload into c according to mode.
//
// A composer that left the document or cannot be typed into fails with a
// *fault.StaleTargetError before anything is mutated. Elements implementing
// dom.Applier get the whole insertion as one dom.Edit; the others are
// mutated and notified back to back on the calling goroutine.
func (e *Engine) Insert(c *detect.Composer, payload string, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	el := c.Element()
	if a, ok := el.(dom.Applier); ok {
		if err := e.apply(a, c.Strategy(), payload, mode); err != nil {
			return err
		}
		e.done(c, payload, mode)
		return nil
	}

	if !el.Connected() {
		return fault.Stale("element detached")
	}
	if el.ReadOnly() {
		return fault.Stale("element not editable")
	}

	var err error
	switch el.Kind() {
	case dom.KindTextControl:
		vc, ok := el.(dom.ValueControl)
		if !ok {
			return fault.Stale("text control without value surface")
		}
		err = e.insertValue(vc, payload, mode)
	case dom.KindContentEditable:
		root, ok := el.(dom.EditableRoot)
		if !ok {
			return fault.Stale("editable element without text surface")
		}
		err = e.insertEditable(root, payload, mode, c.Strategy() == site.StrategyComposition)
	default:
		return fault.Stale("element no longer a composer")
	}
	if err != nil {
		return fmt.Errorf("insert: %s: %w", mode, err)
	}
	e.done(c, payload, mode)
	return nil
}

func (e *Engine) done(c *detect.Composer, payload string, mode Mode) {
	e.logger.Debug("insert: done",
		"site", c.SiteID(), "mode", string(mode), "strategy", string(c.Strategy()),
		"node", int64(c.ID()), "len", dom.Len16(payload))
}

var placements = map[Mode]dom.Placement{
	ModeReplace: dom.PlaceReplace,
	ModePrefix:  dom.PlaceStart,
	ModeSuffix:  dom.PlaceEnd,
	ModeCursor:  dom.PlaceSelection,
}

func (e *Engine) apply(a dom.Applier, strategy site.Strategy, payload string, mode Mode) error {
	var evs []dom.Event
	switch a.Kind() {
	case dom.KindTextControl:
		evs = events(payload, false)
	case dom.KindContentEditable:
		evs = events(payload, strategy == site.StrategyComposition)
	default:
		return fault.Stale("element no longer a composer")
	}
	err := a.Apply(dom.Edit{Place: placements[mode], Text: payload, Events: evs})
	if err == nil {
		return nil
	}
	var stale *fault.StaleTargetError
	if errors.As(err, &stale) {
		return stale
	}
	return fmt.Errorf("insert: %s: %w", mode, err)
}

// events lists what announces an insertion, in dispatch order.
func events(payload string, composition bool) []dom.Event {
	if !composition {
		return []dom.Event{inputEvent(payload)}
	}
	return []dom.Event{
		{Type: "compositionstart", Bubbles: true, Data: payload},
		{Type: "compositionupdate", Bubbles: true, Data: payload},
		inputEvent(payload),
		{Type: "compositionend", Bubbles: true, Data: payload},
	}
}

func (e *Engine) insertValue(vc dom.ValueControl, payload string, mode Mode) error {
	prior, err := vc.Value()
	if err != nil {
		return err
	}

	var next string
	caret := -1
	switch mode {
	case ModeReplace:
		next = payload
	case ModePrefix:
		next = payload + prior
	case ModeSuffix:
		next = prior + payload
	case ModeCursor:
		start, end, ok, err := vc.Selection()
		if err != nil {
			return err
		}
		if !ok {
			start, end = dom.Len16(prior), dom.Len16(prior)
		}
		next = dom.Splice16(prior, start, end, payload)
		caret = min(start, end) + dom.Len16(payload)
	}
	if caret < 0 {
		caret = dom.Len16(next)
	}

	if err := vc.SetValue(next); err != nil {
		return err
	}
	if err := vc.SetSelection(caret, caret); err != nil {
		return err
	}
	return vc.Dispatch(inputEvent(payload))
}

func (e *Engine) insertEditable(root dom.EditableRoot, payload string, mode Mode, composition bool) error {
	var err error
	switch mode {
	case ModeReplace:
		err = root.ReplaceText(payload)
	case ModePrefix:
		err = root.InsertEdge(true, payload)
	case ModeSuffix:
		err = root.InsertEdge(false, payload)
	case ModeCursor:
		var ok bool
		ok, err = root.InsertAtSelection(payload)
		if err == nil && !ok {
			if err = root.InsertEdge(false, payload); err == nil {
				err = root.CaretToEnd()
			}
		}
	}
	if err != nil {
		return err
	}
	if mode != ModeCursor {
		if err := root.CaretToEnd(); err != nil {
			return err
		}
	}

	for _, ev := range events(payload, composition) {
		if err := root.Dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

func inputEvent(payload string) dom.Event {
	return dom.Event{Type: "input", Bubbles: true, Data: payload, InputType: "insertText"}
}
