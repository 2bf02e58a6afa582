package memdom

import (
	"strings"

	"github.com/hazyhaar/promptdock/dom"
)

// KeyboardEvent is a keydown event for Document.DispatchKey.
type KeyboardEvent struct {
	KeyName  string
	CtrlKey  bool
	ShiftKey bool
	AltKey   bool
	MetaKey  bool
	On       *Element

	DefaultPrevented   bool
	PropagationStopped bool
}

var _ dom.KeyEvent = (*KeyboardEvent)(nil)

// Keydown builds an event from a shorthand like "ctrl+shift+p". The last
// token is the key; earlier tokens set modifiers.
func Keydown(target *Element, combo string) *KeyboardEvent {
	parts := strings.Split(combo, "+")
	ev := &KeyboardEvent{KeyName: parts[len(parts)-1], On: target}
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(p) {
		case "ctrl":
			ev.CtrlKey = true
		case "shift":
			ev.ShiftKey = true
		case "alt":
			ev.AltKey = true
		case "meta":
			ev.MetaKey = true
		}
	}
	return ev
}

func (k *KeyboardEvent) Key() string { return k.KeyName }
func (k *KeyboardEvent) Ctrl() bool  { return k.CtrlKey }
func (k *KeyboardEvent) Shift() bool { return k.ShiftKey }
func (k *KeyboardEvent) Alt() bool   { return k.AltKey }
func (k *KeyboardEvent) Meta() bool  { return k.MetaKey }

func (k *KeyboardEvent) Target() dom.Element {
	if k.On == nil {
		return nil
	}
	return k.On
}

func (k *KeyboardEvent) PreventDefault()  { k.DefaultPrevented = true }
func (k *KeyboardEvent) StopPropagation() { k.PropagationStopped = true }
