// Package dom is the narrow view of a host page that the composer core needs.
//
// The host document is observed, not owned. Element handles are weak: any of
// them may leave the document between two calls, so callers re-check
// Connected before acting on a cached handle.
//
// Two backends implement it: dom/memdom (in-memory, x/net/html) and
// dom/roddom (a live Chrome tab driven over CDP).
package dom

import (
	"context"
	"errors"
)

// ErrNoBody is returned by Document.Observe when the document has no body yet.
var ErrNoBody = errors.New("dom: document has no body")

// NodeID identifies a physical node for the lifetime of the document.
// Two handles on the same node always report the same NodeID.
type NodeID int64

// Kind classifies an element for composer detection.
type Kind int

const (
	KindUnsupported     Kind = iota
	KindTextControl          // textarea or text-like input
	KindContentEditable      // element whose isContentEditable is true
)

func (k Kind) String() string {
	switch k {
	case KindTextControl:
		return "text-control"
	case KindContentEditable:
		return "contenteditable"
	default:
		return "unsupported"
	}
}

// Event is a synthetic DOM event dispatched on an element.
type Event struct {
	Type      string // input, compositionstart, compositionupdate, compositionend
	Bubbles   bool
	Data      string
	InputType string // InputEvent.inputType, input events only
}

// Document is the host page.
type Document interface {
	// URL returns the current page URL. Read once per call.
	URL() (string, error)
	// Body returns the body element, or nil when none exists yet.
	Body() (Element, error)
	// QueryAll returns every element matching selector, in document order.
	QueryAll(selector string) ([]Element, error)
	// Observe installs a childList+subtree observer rooted at the body.
	// onChange runs once per observed batch. Returns ErrNoBody when there
	// is no body; the caller retries later. The observer lives until ctx ends.
	Observe(ctx context.Context, onChange func()) error
	// OnKey registers a global keydown listener. The returned function removes it.
	OnKey(fn func(KeyEvent)) (remove func())
}

// Element is a weak handle on a host element.
type Element interface {
	ID() NodeID
	Tag() string
	Attr(name string) (string, bool)
	Kind() Kind
	// Connected reports whether the element is still attached to the document.
	Connected() bool
	// ReadOnly reports whether the user could not type into the element
	// (readonly, disabled, contenteditable turned off).
	ReadOnly() bool
	// Contains reports whether other is this element or one of its descendants.
	Contains(other Element) bool
	Dispatch(ev Event) error
}

// ValueControl is a form control holding its text in a value property.
// Selection offsets are UTF-16 code units, as in the browser.
type ValueControl interface {
	Element
	Value() (string, error)
	// SetValue assigns through the native value setter so that frameworks
	// wrapping the property still see the change on the next input event.
	SetValue(v string) error
	// Selection returns the selection range. ok is false when the control
	// has no active selection.
	Selection() (start, end int, ok bool, err error)
	SetSelection(start, end int) error
}

// EditableRoot is a contentEditable element.
type EditableRoot interface {
	Element
	Text() (string, error)
	// ReplaceText drops every child and leaves a single text node.
	ReplaceText(text string) error
	// InsertEdge inserts a text node before the first child (atStart) or
	// after the last child. Existing nodes are left untouched.
	InsertEdge(atStart bool, text string) error
	// InsertAtSelection replaces the current selection with text and leaves
	// the caret after it. ok is false when no selection lies inside the
	// element; nothing is mutated in that case.
	InsertAtSelection(text string) (ok bool, err error)
	// CaretToEnd collapses the selection at the end of the element.
	CaretToEnd() error
}

// Placement says where an Edit puts its text.
type Placement string

const (
	PlaceReplace   Placement = "replace"   // instead of the whole content
	PlaceStart     Placement = "start"     // before the first character
	PlaceEnd       Placement = "end"       // after the last character
	PlaceSelection Placement = "selection" // over the selection, at the end without one
)

// Edit is one insertion together with the events announcing it.
type Edit struct {
	Place  Placement
	Text   string
	Events []Event
}

// Applier is implemented by elements whose separate calls may each land in a
// different turn of the page's event loop. Apply checks that the element is
// attached and editable, mutates it, leaves the caret after the text and
// dispatches Events in order, all in one turn. A detached or non-editable
// element fails with a *fault.StaleTargetError and is left untouched.
type Applier interface {
	Element
	Apply(ed Edit) error
}

// KeyEvent is a global keydown event.
type KeyEvent interface {
	// Key is the logical key (KeyboardEvent.key).
	Key() string
	Ctrl() bool
	Shift() bool
	Alt() bool
	Meta() bool
	// Target is the element the event originated from, nil if unknown.
	Target() Element
	PreventDefault()
	StopPropagation()
}

// KeyGuard is implemented by documents whose key listeners run outside the
// page. PreventDefault on such an event cannot reach the page in time, so the
// page itself blocks the guarded chords. Chords use the canonical
// "Ctrl+Shift+Alt+Meta+Key" form.
type KeyGuard interface {
	GuardKeys(chords []string) error
}
