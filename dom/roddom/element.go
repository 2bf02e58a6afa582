package roddom

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/fault"
)

// Element is a dom.Element over a rod element handle. It implements both
// dom.ValueControl and dom.EditableRoot; Kind tells which surface applies.
type Element struct {
	doc *Document
	el  *rod.Element
	id  dom.NodeID
	tag string
}

var (
	_ dom.ValueControl = (*Element)(nil)
	_ dom.EditableRoot = (*Element)(nil)
	_ dom.Applier      = (*Element)(nil)
)

const (
	jsKind = `() => {
		const t = this.tagName.toLowerCase();
		if (t === 'textarea') return 1;
		if (t === 'input') {
			const ty = (this.getAttribute('type') || '').toLowerCase();
			return ['', 'text', 'search', 'email', 'url', 'tel'].includes(ty) ? 1 : 0;
		}
		return this.isContentEditable ? 2 : 0;
	}`

	jsReadOnly = `() => {
		if (this instanceof HTMLTextAreaElement || this instanceof HTMLInputElement)
			return this.readOnly || this.disabled;
		return !this.isContentEditable;
	}`

	// jsSetValue goes through the prototype's value setter so that React's
	// tracker on the instance property sees a real change.
	jsSetValue = `(v) => {
		const proto = this instanceof HTMLTextAreaElement
			? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		Object.getOwnPropertyDescriptor(proto, 'value').set.call(this, v);
	}`

	jsSelection = `() => [
		this.selectionStart ?? 0,
		this.selectionEnd ?? 0,
		document.activeElement === this && typeof this.selectionStart === 'number',
	]`

	jsNewEvent = `(type, bubbles, data, inputType) => {
		if (type === 'input' || type === 'beforeinput')
			return new InputEvent(type, { bubbles, data, inputType });
		if (type.startsWith('composition'))
			return new CompositionEvent(type, { bubbles, data });
		return new Event(type, { bubbles });
	}`

	jsDispatch = `(type, bubbles, data, inputType) => {
		this.dispatchEvent((` + jsNewEvent + `)(type, bubbles, data, inputType));
	}`

	// jsApply runs a whole dom.Edit inside one task of the page. It returns
	// a stale reason, or "" once the edit and its events went through.
	jsApply = `(place, text, evs) => {
		if (!this.isConnected) return 'element detached';
		const field = this instanceof HTMLTextAreaElement || this instanceof HTMLInputElement;
		if (field ? (this.readOnly || this.disabled) : !this.isContentEditable)
			return 'element not editable';
		if (field) {
			const prior = this.value;
			let start = prior.length, end = prior.length;
			if (place === 'selection' && document.activeElement === this &&
				typeof this.selectionStart === 'number') {
				start = Math.min(this.selectionStart, this.selectionEnd);
				end = Math.max(this.selectionStart, this.selectionEnd);
			}
			let next = prior.slice(0, start) + text + prior.slice(end);
			if (place === 'replace') next = text;
			if (place === 'start') next = text + prior;
			if (place === 'end') next = prior + text;
			const caret = place === 'selection' ? start + text.length : next.length;
			const proto = this instanceof HTMLTextAreaElement
				? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			Object.getOwnPropertyDescriptor(proto, 'value').set.call(this, next);
			this.setSelectionRange(caret, caret);
		} else {
			const s = window.getSelection();
			const n = document.createTextNode(text);
			const r = s && s.rangeCount ? s.getRangeAt(0) : null;
			const caret = document.createRange();
			if (place === 'selection' && r && this.contains(r.commonAncestorContainer)) {
				r.deleteContents();
				r.insertNode(n);
				caret.setStartAfter(n);
			} else {
				if (place === 'replace') this.replaceChildren(n);
				else if (place === 'start') this.insertBefore(n, this.firstChild);
				else this.appendChild(n);
				caret.selectNodeContents(this);
			}
			caret.collapse(false);
			if (s) {
				s.removeAllRanges();
				s.addRange(caret);
			}
		}
		const mk = ` + jsNewEvent + `;
		for (const e of evs) this.dispatchEvent(mk(e.type, e.bubbles, e.data, e.inputType));
		return '';
	}`

	jsInsertEdge = `(atStart, t) => {
		const n = document.createTextNode(t);
		if (atStart) this.insertBefore(n, this.firstChild); else this.appendChild(n);
	}`

	jsInsertAtSelection = `(t) => {
		const s = window.getSelection();
		if (!s || s.rangeCount === 0) return false;
		const r = s.getRangeAt(0);
		if (!this.contains(r.commonAncestorContainer)) return false;
		r.deleteContents();
		const n = document.createTextNode(t);
		r.insertNode(n);
		r.setStartAfter(n);
		r.collapse(true);
		s.removeAllRanges();
		s.addRange(r);
		return true;
	}`

	jsCaretToEnd = `() => {
		const r = document.createRange();
		r.selectNodeContents(this);
		r.collapse(false);
		const s = window.getSelection();
		s.removeAllRanges();
		s.addRange(r);
	}`
)

func (e *Element) ID() dom.NodeID { return e.id }

func (e *Element) Tag() string { return strings.ToLower(e.tag) }

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// Kind implements dom.Element. Errors read as unsupported.
func (e *Element) Kind() dom.Kind {
	res, err := e.el.Eval(jsKind)
	if err != nil {
		return dom.KindUnsupported
	}
	return dom.Kind(res.Value.Int())
}

// Connected implements dom.Element. Errors read as detached.
func (e *Element) Connected() bool {
	res, err := e.el.Eval(`() => this.isConnected`)
	return err == nil && res.Value.Bool()
}

// ReadOnly implements dom.Element. Errors read as read-only.
func (e *Element) ReadOnly() bool {
	res, err := e.el.Eval(jsReadOnly)
	return err != nil || res.Value.Bool()
}

// Contains implements dom.Element.
func (e *Element) Contains(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	if o.id == e.id {
		return true
	}
	res, err := e.el.Eval(`(o) => this.contains(o)`, o.el.Object)
	return err == nil && res.Value.Bool()
}

// applyEvent is the wire form of a dom.Event for jsApply.
type applyEvent struct {
	Type      string `json:"type"`
	Bubbles   bool   `json:"bubbles"`
	Data      string `json:"data"`
	InputType string `json:"inputType"`
}

// Apply implements dom.Applier with a single Runtime.callFunctionOn, so the
// page cannot run between the mutation and its events.
func (e *Element) Apply(ed dom.Edit) error {
	evs := make([]applyEvent, len(ed.Events))
	for i, ev := range ed.Events {
		evs[i] = applyEvent{Type: ev.Type, Bubbles: ev.Bubbles, Data: ev.Data, InputType: ev.InputType}
	}
	res, err := e.el.Eval(jsApply, string(ed.Place), ed.Text, evs)
	if err != nil {
		return fmt.Errorf("roddom: apply %s: %w", ed.Place, err)
	}
	if reason := res.Value.Str(); reason != "" {
		return fault.Stale(reason)
	}
	return nil
}

// Dispatch implements dom.Element.
func (e *Element) Dispatch(ev dom.Event) error {
	if _, err := e.el.Eval(jsDispatch, ev.Type, ev.Bubbles, ev.Data, ev.InputType); err != nil {
		return fmt.Errorf("roddom: dispatch %s: %w", ev.Type, err)
	}
	return nil
}

// Value implements dom.ValueControl.
func (e *Element) Value() (string, error) {
	res, err := e.el.Eval(`() => this.value`)
	if err != nil {
		return "", fmt.Errorf("roddom: value: %w", err)
	}
	return res.Value.Str(), nil
}

// SetValue implements dom.ValueControl.
func (e *Element) SetValue(v string) error {
	if _, err := e.el.Eval(jsSetValue, v); err != nil {
		return fmt.Errorf("roddom: set value: %w", err)
	}
	return nil
}

// Selection implements dom.ValueControl. The selection counts as active only
// while the control holds focus.
func (e *Element) Selection() (int, int, bool, error) {
	res, err := e.el.Eval(jsSelection)
	if err != nil {
		return 0, 0, false, fmt.Errorf("roddom: selection: %w", err)
	}
	arr := res.Value.Arr()
	if len(arr) != 3 {
		return 0, 0, false, fmt.Errorf("roddom: selection: unexpected result %s", res.Value.String())
	}
	return arr[0].Int(), arr[1].Int(), arr[2].Bool(), nil
}

// SetSelection implements dom.ValueControl.
func (e *Element) SetSelection(start, end int) error {
	if _, err := e.el.Eval(`(s, e) => this.setSelectionRange(s, e)`, start, end); err != nil {
		return fmt.Errorf("roddom: set selection: %w", err)
	}
	return nil
}

// Text implements dom.EditableRoot.
func (e *Element) Text() (string, error) {
	res, err := e.el.Eval(`() => this.textContent`)
	if err != nil {
		return "", fmt.Errorf("roddom: text: %w", err)
	}
	return res.Value.Str(), nil
}

// ReplaceText implements dom.EditableRoot.
func (e *Element) ReplaceText(text string) error {
	if _, err := e.el.Eval(`(t) => this.replaceChildren(document.createTextNode(t))`, text); err != nil {
		return fmt.Errorf("roddom: replace text: %w", err)
	}
	return nil
}

// InsertEdge implements dom.EditableRoot.
func (e *Element) InsertEdge(atStart bool, text string) error {
	if _, err := e.el.Eval(jsInsertEdge, atStart, text); err != nil {
		return fmt.Errorf("roddom: insert edge: %w", err)
	}
	return nil
}

// InsertAtSelection implements dom.EditableRoot.
func (e *Element) InsertAtSelection(text string) (bool, error) {
	res, err := e.el.Eval(jsInsertAtSelection, text)
	if err != nil {
		return false, fmt.Errorf("roddom: insert at selection: %w", err)
	}
	return res.Value.Bool(), nil
}

// CaretToEnd implements dom.EditableRoot.
func (e *Element) CaretToEnd() error {
	if _, err := e.el.Eval(jsCaretToEnd); err != nil {
		return fmt.Errorf("roddom: caret to end: %w", err)
	}
	return nil
}
