package roddom

import (
	"errors"
	"testing"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/fault"
	"github.com/hazyhaar/promptdock/insert"
	"github.com/hazyhaar/promptdock/site"
)

// jsRecorder logs every composer event that reaches the document. It also
// makes #ta behave like a framework-controlled field. An instance value setter
// remembers what the framework last wrote. An input event commits only a
// native value that differs from it. A render loop forces the committed
// state back on every task.
const jsRecorder = `() => {
	window.__seen = [];
	for (const type of ['input', 'compositionstart', 'compositionupdate', 'compositionend']) {
		document.addEventListener(type, (e) => {
			window.__seen.push(e.target.id + ':' + e.type + ':' + e.bubbles);
		});
	}
	const ta = document.getElementById('ta');
	const native = Object.getOwnPropertyDescriptor(HTMLTextAreaElement.prototype, 'value');
	let tracked = native.get.call(ta);
	let state = tracked;
	Object.defineProperty(ta, 'value', {
		configurable: true,
		get() { return native.get.call(this); },
		set(v) { tracked = v; native.set.call(this, v); },
	});
	window.__changes = 0;
	ta.addEventListener('input', () => {
		const cur = native.get.call(ta);
		if (cur !== tracked) {
			tracked = cur;
			state = cur;
			window.__changes++;
		}
	});
	window.__render = (v) => { state = v; ta.value = v; };
	setInterval(() => { if (ta.value !== state) ta.value = state; }, 0);
}`

func recorder(t *testing.T, page *rod.Page) {
	t.Helper()
	if _, err := page.Eval(jsRecorder); err != nil {
		t.Fatalf("install recorder: %v", err)
	}
}

func seen(t *testing.T, page *rod.Page) string {
	t.Helper()
	res, err := page.Eval(`() => window.__seen.join(' ')`)
	if err != nil {
		t.Fatal(err)
	}
	return res.Value.Str()
}

func evalInt(t *testing.T, page *rod.Page, js string) int {
	t.Helper()
	res, err := page.Eval(js)
	if err != nil {
		t.Fatal(err)
	}
	return res.Value.Int()
}

func evalStr(t *testing.T, page *rod.Page, js string) string {
	t.Helper()
	res, err := page.Eval(js)
	if err != nil {
		t.Fatal(err)
	}
	return res.Value.Str()
}

func composerOf(t *testing.T, doc *Document, selector string, strategy site.Strategy) *detect.Composer {
	t.Helper()
	els, err := doc.QueryAll(selector)
	if err != nil || len(els) != 1 {
		t.Fatalf("QueryAll(%s): %v %d", selector, err, len(els))
	}
	return detect.NewComposer(els[0], strategy, "test")
}

func TestRodInsert_ReplaceIsSeenByControlledField(t *testing.T) {
	doc, page := attachFixture(t)
	recorder(t, page)

	c := composerOf(t, doc, "#ta", site.StrategyFormValue)
	if err := insert.New(nil).Insert(c, "world", insert.ModeReplace); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := seen(t, page); got != "ta:input:true" {
		t.Fatalf("events: got %q, want one bubbling input", got)
	}
	if n := evalInt(t, page, `() => window.__changes`); n != 1 {
		t.Fatalf("framework changes: got %d, want 1", n)
	}
	// A render pass after the insertion keeps the committed value.
	if got := evalStr(t, page, `() => new Promise((r) => setTimeout(() => r(document.getElementById('ta').value), 20))`); got != "world" {
		t.Fatalf("value after render: got %q, want world", got)
	}
}

func TestRodInsert_CursorSelection(t *testing.T) {
	doc, page := attachFixture(t)
	recorder(t, page)
	if _, err := page.Eval(`() => {
		const ta = document.getElementById('ta');
		window.__render('abcd');
		ta.focus();
		ta.setSelectionRange(1, 3);
	}`); err != nil {
		t.Fatal(err)
	}

	c := composerOf(t, doc, "#ta", site.StrategyFormValue)
	if err := insert.New(nil).Insert(c, "X", insert.ModeCursor); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := evalStr(t, page, `() => document.getElementById('ta').value`); got != "aXd" {
		t.Fatalf("value: got %q, want aXd", got)
	}
	if caret := evalInt(t, page, `() => document.getElementById('ta').selectionStart`); caret != 2 {
		t.Fatalf("caret: got %d, want 2", caret)
	}
	if got := seen(t, page); got != "ta:input:true" {
		t.Fatalf("events: got %q", got)
	}
}

func TestRodInsert_CompositionOnEditable(t *testing.T) {
	doc, page := attachFixture(t)
	recorder(t, page)

	c := composerOf(t, doc, "#ce", site.StrategyComposition)
	if err := insert.New(nil).Insert(c, "c", insert.ModeSuffix); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	want := "ce:compositionstart:true ce:compositionupdate:true ce:input:true ce:compositionend:true"
	if got := seen(t, page); got != want {
		t.Fatalf("events: got %q, want %q", got, want)
	}
	if got := evalStr(t, page, `() => document.getElementById('ce').innerHTML`); got != "a<b>b</b>c" {
		t.Fatalf("content: got %q, want a<b>b</b>c", got)
	}
}

func TestRodInsert_DetachedIsStale(t *testing.T) {
	doc, page := attachFixture(t)
	recorder(t, page)

	c := composerOf(t, doc, "#ta", site.StrategyFormValue)
	if _, err := page.Eval(`() => { window.__ta = document.getElementById('ta'); window.__ta.remove(); }`); err != nil {
		t.Fatal(err)
	}
	err := insert.New(nil).Insert(c, "world", insert.ModeReplace)
	if !errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("Insert on detached textarea: got %v, want stale target", err)
	}
	if got := evalStr(t, page, `() => window.__ta.value`); got != "hello" {
		t.Fatalf("detached value: got %q, want hello untouched", got)
	}
	if got := seen(t, page); got != "" {
		t.Fatalf("events: got %q, want none", got)
	}
}

func TestRodInsert_ReadOnlyIsStale(t *testing.T) {
	doc, page := attachFixture(t)
	if _, err := page.Eval(`() => { document.getElementById('ta').readOnly = true; }`); err != nil {
		t.Fatal(err)
	}
	c := composerOf(t, doc, "#ta", site.StrategyFormValue)
	err := insert.New(nil).Insert(c, "world", insert.ModeSuffix)
	if !errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("Insert on read-only textarea: got %v, want stale target", err)
	}
	if got := evalStr(t, page, `() => document.getElementById('ta').value`); got != "hello" {
		t.Fatalf("value: got %q, want hello", got)
	}
}

func TestRod_GuardKeys(t *testing.T) {
	doc, page := attachFixture(t)
	if err := doc.GuardKeys([]string{"Ctrl+Shift+P"}); err != nil {
		t.Fatalf("GuardKeys: %v", err)
	}
	res, err := page.Eval(`() => {
		const ta = document.getElementById('ta');
		const reached = [];
		ta.addEventListener('keydown', (e) => reached.push(e.key + (e.shiftKey ? '+shift' : '')));
		const press = (shiftKey) => ta.dispatchEvent(new KeyboardEvent('keydown', {
			key: 'P', ctrlKey: true, shiftKey, bubbles: true, cancelable: true,
		}));
		const guarded = press(true);
		const plain = press(false);
		return [guarded, plain, reached.join(',')];
	}`)
	if err != nil {
		t.Fatal(err)
	}
	arr := res.Value.Arr()
	if arr[0].Bool() {
		t.Fatal("Ctrl+Shift+P: default not prevented")
	}
	if !arr[1].Bool() {
		t.Fatal("Ctrl+P: default prevented, want untouched")
	}
	if got := arr[2].Str(); got != "P" {
		t.Fatalf("keydowns reaching the page: got %q, want only the unguarded P", got)
	}
}
