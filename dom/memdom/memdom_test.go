package memdom

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/promptdock/dom"
)

func TestKind(t *testing.T) {
	d := MustParse("https://x.test", `<body>
		<textarea id="ta"></textarea>
		<input id="txt" type="text">
		<input id="cb" type="checkbox">
		<div id="ce" contenteditable="true"><p id="inner">x</p></div>
		<div id="off" contenteditable="false"></div>
		<span id="plain"></span>
	</body>`)

	cases := map[string]dom.Kind{
		"#ta":    dom.KindTextControl,
		"#txt":   dom.KindTextControl,
		"#cb":    dom.KindUnsupported,
		"#ce":    dom.KindContentEditable,
		"#inner": dom.KindContentEditable,
		"#off":   dom.KindUnsupported,
		"#plain": dom.KindUnsupported,
	}
	for sel, want := range cases {
		el := d.Query(sel)
		if el == nil {
			t.Fatalf("%s: not found", sel)
		}
		if got := el.Kind(); got != want {
			t.Errorf("%s: got %s, want %s", sel, got, want)
		}
	}
}

func TestIdentityStable(t *testing.T) {
	d := MustParse("https://x.test", `<body><textarea></textarea></body>`)
	a := d.Query("textarea")
	b := d.Query("body > textarea")
	if a.ID() != b.ID() || a != b {
		t.Fatal("same node returned different handles")
	}
}

func TestObserve_NoBody(t *testing.T) {
	d := New("https://x.test")
	err := d.Observe(context.Background(), func() {})
	if !errors.Is(err, dom.ErrNoBody) {
		t.Fatalf("Observe without body: got %v, want ErrNoBody", err)
	}
	b, _ := d.Body()
	if b != nil {
		t.Fatal("Body: got element, want nil")
	}
}

func TestObserve_DeliveredAtSettle(t *testing.T) {
	d := MustParse("https://x.test", `<body><main></main></body>`)
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Observe(ctx, func() { calls++ }); err != nil {
		t.Fatal(err)
	}

	main := d.Query("main")
	if err := d.Append(main, `<textarea></textarea><textarea></textarea>`); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("observer ran before Settle: %d", calls)
	}
	d.Settle()
	if calls != 1 {
		t.Fatalf("after Settle: got %d calls, want 1", calls)
	}
	d.Settle()
	if calls != 1 {
		t.Fatalf("idle Settle: got %d calls, want 1", calls)
	}

	d.Remove(main)
	d.Settle()
	if calls != 2 {
		t.Fatalf("after remove: got %d calls, want 2", calls)
	}
}

func TestConnected(t *testing.T) {
	d := MustParse("https://x.test", `<body><div><textarea></textarea></div></body>`)
	ta := d.Query("textarea")
	if !ta.Connected() {
		t.Fatal("fresh element not connected")
	}
	d.Remove(d.Query("div"))
	if ta.Connected() {
		t.Fatal("element still connected after parent removal")
	}
}

func TestInsertAtSelection_AcrossNodes(t *testing.T) {
	d := MustParse("https://x.test", `<body><div contenteditable="true">ab<b>cd</b>ef</div></body>`)
	ce := d.Query("div")
	d.Select(ce, 1, 5) // "bcde"

	ok, err := ce.InsertAtSelection("X")
	if err != nil || !ok {
		t.Fatalf("InsertAtSelection: ok=%v err=%v", ok, err)
	}
	if got, _ := ce.Text(); got != "aXf" {
		t.Errorf("Text: got %q, want %q", got, "aXf")
	}
	if d.Query("b") == nil {
		t.Error("inline element dropped")
	}
	if pos, ok := d.Caret(ce); !ok || pos != 2 {
		t.Errorf("Caret: got %d,%v want 2,true", pos, ok)
	}
}

func TestInsertAtSelection_NoSelection(t *testing.T) {
	d := MustParse("https://x.test", `<body><div contenteditable="true">ab</div></body>`)
	ce := d.Query("div")
	ok, err := ce.InsertAtSelection("X")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("InsertAtSelection without selection reported ok")
	}
	if got, _ := ce.Text(); got != "ab" {
		t.Errorf("Text mutated: %q", got)
	}
}

func TestDispatch_Bubbles(t *testing.T) {
	d := MustParse("https://x.test", `<body><form><textarea></textarea></form></body>`)
	form := d.Query("form")
	var seen []string
	d.Listen(form, "input", func(ev dom.Event) { seen = append(seen, ev.Type) })

	ta := d.Query("textarea")
	ta.Dispatch(dom.Event{Type: "input", Bubbles: false})
	ta.Dispatch(dom.Event{Type: "input", Bubbles: true})

	if len(seen) != 1 {
		t.Fatalf("form listener: got %d events, want 1", len(seen))
	}
	if n := len(d.EventsOf("input")); n != 2 {
		t.Fatalf("event log: got %d, want 2", n)
	}
}
