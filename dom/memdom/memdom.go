// Package memdom is an in-memory dom.Document over golang.org/x/net/html.
//
// It backs the core tests and the dry-run command. Selectors are matched with
// cascadia. Mutation observers are not called while the tree changes: the
// changes are queued and delivered at the next Settle call, the same way a
// browser delivers MutationObserver records at a microtask checkpoint.
package memdom

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/promptdock/dom"
)

// Record is one event dispatched on an element.
type Record struct {
	Target dom.NodeID
	Event  dom.Event
}

type selection struct {
	root       *html.Node
	start, end int // UTF-16 offsets into root's text content
}

type listener struct {
	node *html.Node
	typ  string
	fn   func(dom.Event)
}

// Document is an in-memory host page. Safe for concurrent use.
type Document struct {
	mu sync.Mutex

	url  string
	root *html.Node

	elems  map[*html.Node]*Element
	nextID dom.NodeID

	observers map[int]func()
	keys      map[int]func(dom.KeyEvent)
	handle    int
	pending   bool

	listeners []listener
	events    []Record
	sel       *selection
}

// New returns a document with a head but no body yet.
func New(url string) *Document {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	root.AppendChild(htmlEl)
	htmlEl.AppendChild(&html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head})
	return newDocument(url, root)
}

// Parse builds a document from a full HTML page. The parser always
// synthesises a body.
func Parse(url, src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	return newDocument(url, root), nil
}

// MustParse is Parse for fixtures.
func MustParse(url, src string) *Document {
	d, err := Parse(url, src)
	if err != nil {
		panic(err)
	}
	return d
}

func newDocument(url string, root *html.Node) *Document {
	return &Document{
		url:       url,
		root:      root,
		elems:     make(map[*html.Node]*Element),
		observers: make(map[int]func()),
		keys:      make(map[int]func(dom.KeyEvent)),
	}
}

// SetURL simulates a navigation that keeps the document.
func (d *Document) SetURL(url string) {
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
}

// URL implements dom.Document.
func (d *Document) URL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b := d.bodyNode(); b != nil {
		return d.wrap(b), nil
	}
	return nil, nil
}

// SetBody creates the body (if missing) and fills it with the HTML fragment.
// Creating the body is not an observable mutation: observers are rooted at it.
func (d *Document) SetBody(inner string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body := d.bodyNode()
	if body == nil {
		htmlEl := d.htmlNode()
		if htmlEl == nil {
			return nil, fmt.Errorf("memdom: no html element")
		}
		body = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		htmlEl.AppendChild(body)
	}
	if err := d.appendFragment(body, inner); err != nil {
		return nil, err
	}
	return d.wrap(body), nil
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("memdom: selector %q: %w", selector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dom.Element
	for _, n := range sel.MatchAll(d.root) {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Element {
	els, err := d.QueryAll(selector)
	if err != nil || len(els) == 0 {
		return nil
	}
	return els[0].(*Element)
}

// Append parses fragment and appends the resulting nodes to parent.
func (d *Document) Append(parent *Element, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.appendFragment(parent.node, fragment); err != nil {
		return err
	}
	d.pending = true
	return nil
}

// Remove detaches el from its parent.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.node.Parent == nil {
		return
	}
	el.node.Parent.RemoveChild(el.node)
	d.pending = true
}

// Observe implements dom.Document.
func (d *Document) Observe(ctx context.Context, onChange func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bodyNode() == nil {
		return dom.ErrNoBody
	}
	d.handle++
	h := d.handle
	d.observers[h] = onChange
	context.AfterFunc(ctx, func() {
		d.mu.Lock()
		delete(d.observers, h)
		d.mu.Unlock()
	})
	return nil
}

// Settle delivers queued childList mutations: each observer is called once
// if anything changed since the previous Settle.
func (d *Document) Settle() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	fns := make([]func(), 0, len(d.observers))
	for h := 1; h <= d.handle; h++ {
		if fn, ok := d.observers[h]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// OnKey implements dom.Document.
func (d *Document) OnKey(fn func(dom.KeyEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle++
	h := d.handle
	d.keys[h] = fn
	return func() {
		d.mu.Lock()
		delete(d.keys, h)
		d.mu.Unlock()
	}
}

// DispatchKey delivers ev to every key listener in registration order.
func (d *Document) DispatchKey(ev *KeyboardEvent) *KeyboardEvent {
	d.mu.Lock()
	fns := make([]func(dom.KeyEvent), 0, len(d.keys))
	for h := 1; h <= d.handle; h++ {
		if fn, ok := d.keys[h]; ok {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Listen registers fn for events of typ reaching el, either as target or
// through bubbling.
func (d *Document) Listen(el *Element, typ string, fn func(dom.Event)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, listener{node: el.node, typ: typ, fn: fn})
	d.mu.Unlock()
}

// Events returns every event dispatched so far.
func (d *Document) Events() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Record(nil), d.events...)
}

// EventsOf returns the dispatched events of one type.
func (d *Document) EventsOf(typ string) []Record {
	var out []Record
	for _, r := range d.Events() {
		if r.Event.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// ResetEvents clears the event log.
func (d *Document) ResetEvents() {
	d.mu.Lock()
	d.events = nil
	d.mu.Unlock()
}

// Select places the document selection inside the contentEditable el, as
// UTF-16 offsets into its text content.
func (d *Document) Select(el *Element, start, end int) {
	d.mu.Lock()
	d.sel = &selection{root: el.node, start: start, end: end}
	d.mu.Unlock()
}

// ClearSelection removes the document selection.
func (d *Document) ClearSelection() {
	d.mu.Lock()
	d.sel = nil
	d.mu.Unlock()
}

// Caret returns the collapsed caret position inside el, if the selection
// lies there.
func (d *Document) Caret(el *Element) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sel == nil || d.sel.root != el.node || d.sel.start != d.sel.end {
		return 0, false
	}
	return d.sel.start, true
}

// HTML serialises the body, for assertions on structure.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.bodyNode()
	if b == nil {
		return ""
	}
	var sb strings.Builder
	for c := b.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&sb, c)
	}
	return sb.String()
}

func (d *Document) htmlNode() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

func (d *Document) bodyNode() *html.Node {
	h := d.htmlNode()
	if h == nil {
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

func (d *Document) appendFragment(parent *html.Node, fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("memdom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// wrap returns the unique handle for n. Caller holds d.mu.
func (d *Document) wrap(n *html.Node) *Element {
	if e, ok := d.elems[n]; ok {
		return e
	}
	d.nextID++
	e := &Element{doc: d, node: n, id: d.nextID}
	d.elems[n] = e
	return e
}

// dispatch records ev and runs matching listeners on the target and, when
// the event bubbles, on its ancestors.
func (d *Document) dispatch(target *html.Node, id dom.NodeID, ev dom.Event) {
	d.mu.Lock()
	d.events = append(d.events, Record{Target: id, Event: ev})
	var fns []func(dom.Event)
	for n := target; n != nil; n = n.Parent {
		for _, l := range d.listeners {
			if l.node == n && l.typ == ev.Type {
				fns = append(fns, l.fn)
			}
		}
		if !ev.Bubbles {
			break
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
