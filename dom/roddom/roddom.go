// Package roddom implements dom.Document over a live Chrome tab driven by
// go-rod.
//
// A small script is injected into every document of the tab. It hosts the
// MutationObserver and the keydown guard and reports back through a CDP
// runtime binding. Binding calls are queued and handled on the Document's own
// goroutine, never inside the CDP event callback.
package roddom

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/promptdock/dom"
)

//go:embed host.js
var hostJS string

const bindingName = "__promptdock_binding"

// hostMsg is one binding payload from host.js.
type hostMsg struct {
	Type    string `json:"type"` // ready, mutation, key
	URL     string `json:"url"`
	Seq     int    `json:"seq"`
	Key     string `json:"key"`
	Ctrl    bool   `json:"ctrl"`
	Shift   bool   `json:"shift"`
	Alt     bool   `json:"alt"`
	Meta    bool   `json:"meta"`
	Guarded bool   `json:"guarded"`
}

// Document is a dom.Document backed by a rod page.
type Document struct {
	page   *rod.Page
	ctx    context.Context
	logger *slog.Logger

	mu        sync.Mutex
	observers map[int]func()
	keys      map[int]func(dom.KeyEvent)
	handle    int
	chords    []string

	mutated chan struct{}
	keyCh   chan hostMsg
	readyCh chan struct{}
}

var (
	_ dom.Document = (*Document)(nil)
	_ dom.KeyGuard = (*Document)(nil)
)

// Attach installs the binding and host script on page and starts the
// dispatch goroutines. They stop when ctx ends.
func Attach(ctx context.Context, page *rod.Page, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Document{
		page:      page.Context(ctx),
		ctx:       ctx,
		logger:    logger,
		observers: make(map[int]func()),
		keys:      make(map[int]func(dom.KeyEvent)),
		mutated:   make(chan struct{}, 1),
		keyCh:     make(chan hostMsg, 64),
		readyCh:   make(chan struct{}, 1),
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(d.page); err != nil {
		logger.Warn("roddom: addBinding failed (may already exist)", "error", err)
	}
	go d.listen()
	go d.loop()

	if _, err := d.page.EvalOnNewDocument(hostJS); err != nil {
		return nil, fmt.Errorf("roddom: install host script: %w", err)
	}
	if _, err := d.page.Eval(`() => {` + hostJS + `}`); err != nil {
		return nil, fmt.Errorf("roddom: inject host script: %w", err)
	}
	logger.Debug("roddom: attached")
	return d, nil
}

// Page returns the underlying rod page.
func (d *Document) Page() *rod.Page { return d.page }

func (d *Document) listen() {
	d.page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var msg hostMsg
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			d.logger.Warn("roddom: parse binding payload", "error", err)
			return
		}
		switch msg.Type {
		case "mutation":
			select {
			case d.mutated <- struct{}{}:
			default:
			}
		case "key":
			select {
			case d.keyCh <- msg:
			default:
				d.logger.Warn("roddom: key queue full, event dropped", "key", msg.Key)
			}
		case "ready":
			d.logger.Debug("roddom: host script ready", "url", msg.URL)
			select {
			case d.readyCh <- struct{}{}:
			default:
			}
		}
	})()
}

func (d *Document) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.mutated:
			d.mu.Lock()
			fns := ordered(d.observers, d.handle)
			d.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		case msg := <-d.keyCh:
			ev := &keyEvent{doc: d, msg: msg}
			d.mu.Lock()
			fns := ordered(d.keys, d.handle)
			d.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		case <-d.readyCh:
			d.reinstall()
		}
	}
}

// reinstall restores the observer and key guard on a freshly loaded document.
func (d *Document) reinstall() {
	d.mu.Lock()
	chords := append([]string(nil), d.chords...)
	observing := len(d.observers) > 0
	d.mu.Unlock()

	if err := d.pushGuard(chords); err != nil {
		d.logger.Warn("roddom: restore key guard", "error", err)
	}
	if observing {
		if _, err := d.page.Eval(`() => window.__promptdock.observe()`); err != nil {
			d.logger.Warn("roddom: restore observer", "error", err)
		}
	}
}

func ordered[F any](m map[int]F, upto int) []F {
	out := make([]F, 0, len(m))
	for h := 1; h <= upto; h++ {
		if fn, ok := m[h]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// URL implements dom.Document.
func (d *Document) URL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", fmt.Errorf("roddom: page info: %w", err)
	}
	return info.URL, nil
}

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	els, err := d.page.Elements("body")
	if err != nil {
		return nil, fmt.Errorf("roddom: body: %w", err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return d.wrap(els[0])
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		e, err := d.wrap(el)
		if err != nil {
			d.logger.Debug("roddom: element vanished during query", "selector", selector, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Observe implements dom.Document.
func (d *Document) Observe(ctx context.Context, onChange func()) error {
	res, err := d.page.Eval(`() => window.__promptdock ? window.__promptdock.observe() : false`)
	if err != nil {
		return fmt.Errorf("roddom: observe: %w", err)
	}
	if !res.Value.Bool() {
		return dom.ErrNoBody
	}
	d.mu.Lock()
	d.handle++
	h := d.handle
	d.observers[h] = onChange
	d.mu.Unlock()
	context.AfterFunc(ctx, func() {
		d.mu.Lock()
		delete(d.observers, h)
		d.mu.Unlock()
	})
	return nil
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

// GuardKeys implements dom.KeyGuard.
func (d *Document) GuardKeys(chords []string) error {
	d.mu.Lock()
	d.chords = append([]string(nil), chords...)
	d.mu.Unlock()
	return d.pushGuard(chords)
}

func (d *Document) pushGuard(chords []string) error {
	if chords == nil {
		chords = []string{}
	}
	_, err := d.page.Eval(`(c) => window.__promptdock && window.__promptdock.guard(c)`, chords)
	if err != nil {
		return fmt.Errorf("roddom: guard keys: %w", err)
	}
	return nil
}

// wrap resolves the element's backend node id, stable across handles.
func (d *Document) wrap(el *rod.Element) (*Element, error) {
	node, err := el.Describe(0, false)
	if err != nil {
		return nil, fmt.Errorf("roddom: describe: %w", err)
	}
	return &Element{doc: d, el: el, id: dom.NodeID(node.BackendNodeID), tag: node.LocalName}, nil
}

// keyEvent is a keydown reported by host.js. Guarded chords were already
// blocked page-side; PreventDefault and StopPropagation only record intent.
type keyEvent struct {
	doc       *Document
	msg       hostMsg
	prevented bool
	stopped   bool

	once   sync.Once
	target dom.Element
}

func (k *keyEvent) Key() string { return k.msg.Key }
func (k *keyEvent) Ctrl() bool  { return k.msg.Ctrl }
func (k *keyEvent) Shift() bool { return k.msg.Shift }
func (k *keyEvent) Alt() bool   { return k.msg.Alt }
func (k *keyEvent) Meta() bool  { return k.msg.Meta }

func (k *keyEvent) PreventDefault()  { k.prevented = true }
func (k *keyEvent) StopPropagation() { k.stopped = true }

// Target resolves the event target lazily; host.js keeps the last targets.
func (k *keyEvent) Target() dom.Element {
	k.once.Do(func() {
		obj, err := k.doc.page.Evaluate(rod.Eval(`(seq) => window.__promptdock.keyTarget(seq)`, k.msg.Seq).ByObject())
		if err != nil || obj.ObjectID == "" {
			return
		}
		el, err := k.doc.page.ElementFromObject(obj)
		if err != nil {
			return
		}
		if e, err := k.doc.wrap(el); err == nil {
			k.target = e
		}
	})
	return k.target
}
