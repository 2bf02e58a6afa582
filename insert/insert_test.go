package insert

import (
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/dom/memdom"
	"github.com/hazyhaar/promptdock/fault"
	"github.com/hazyhaar/promptdock/site"
)

func composer(el *memdom.Element, strategy site.Strategy) *detect.Composer {
	return detect.NewComposer(el, strategy, "test")
}

func textarea(t *testing.T, value string) (*memdom.Document, *memdom.Element) {
	t.Helper()
	doc := memdom.MustParse("https://claude.ai/", `<body><form><textarea></textarea></form></body>`)
	ta := doc.Query("textarea")
	if err := ta.SetValue(value); err != nil {
		t.Fatal(err)
	}
	return doc, ta
}

func editable(t *testing.T, inner string) (*memdom.Document, *memdom.Element) {
	t.Helper()
	doc := memdom.MustParse("https://claude.ai/", `<body><div contenteditable="true">`+inner+`</div></body>`)
	return doc, doc.Query("div")
}

func assertOneBubblingInput(t *testing.T, doc *memdom.Document) {
	t.Helper()
	inputs := doc.EventsOf("input")
	if len(inputs) != 1 {
		t.Fatalf("input events: got %d, want 1", len(inputs))
	}
	if !inputs[0].Event.Bubbles {
		t.Fatal("input event does not bubble")
	}
}

func TestInsert_FormModes(t *testing.T) {
	cases := []struct {
		mode  Mode
		prior string
		want  string
	}{
		{ModeReplace, "hello", "world"},
		{ModePrefix, "hello", "worldhello"},
		{ModeSuffix, "hello", "helloworld"},
		{ModeCursor, "hello", "helloworld"}, // no selection: append
	}
	e := New(nil)
	for _, tc := range cases {
		doc, ta := textarea(t, tc.prior)
		if err := e.Insert(composer(ta, site.StrategyFormValue), "world", tc.mode); err != nil {
			t.Fatalf("%s: %v", tc.mode, err)
		}
		got, _ := ta.Value()
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.mode, got, tc.want)
		}
		start, end, _, _ := ta.Selection()
		if start != len(tc.want) || end != start {
			t.Errorf("%s: caret got [%d,%d), want %d", tc.mode, start, end, len(tc.want))
		}
		assertOneBubblingInput(t, doc)
	}
}

func TestInsert_ReplaceBubblesToForm(t *testing.T) {
	doc, ta := textarea(t, "hello")
	heard := 0
	doc.Listen(doc.Query("form"), "input", func(dom.Event) { heard++ })
	if err := New(nil).Insert(composer(ta, site.StrategyAuto), "world", ModeReplace); err != nil {
		t.Fatal(err)
	}
	if heard != 1 {
		t.Fatalf("form heard %d input events, want 1", heard)
	}
	if rec := doc.EventsOf("input")[0]; rec.Event.InputType != "insertText" || rec.Event.Data != "world" {
		t.Fatalf("input event: %+v", rec.Event)
	}
}

func TestInsert_CursorSelection(t *testing.T) {
	doc, ta := textarea(t, "abcd")
	ta.SetSelection(1, 3)
	if err := New(nil).Insert(composer(ta, site.StrategyFormValue), "X", ModeCursor); err != nil {
		t.Fatal(err)
	}
	if got, _ := ta.Value(); got != "aXd" {
		t.Fatalf("value: got %q, want aXd", got)
	}
	start, end, _, _ := ta.Selection()
	if start != 2 || end != 2 {
		t.Fatalf("caret: got [%d,%d), want 2", start, end)
	}
	assertOneBubblingInput(t, doc)
}

func TestInsert_CursorUTF16(t *testing.T) {
	_, ta := textarea(t, "😀b")
	ta.SetSelection(2, 2) // after the surrogate pair
	if err := New(nil).Insert(composer(ta, site.StrategyFormValue), "é", ModeCursor); err != nil {
		t.Fatal(err)
	}
	if got, _ := ta.Value(); got != "😀éb" {
		t.Fatalf("value: got %q", got)
	}
	if start, _, _, _ := ta.Selection(); start != 3 {
		t.Fatalf("caret: got %d, want 3", start)
	}
}

func TestInsert_EditableModes(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{ModeReplace, "b"},
		{ModePrefix, "ba"},
		{ModeSuffix, "ab"},
		{ModeCursor, "ab"},
	}
	e := New(nil)
	for _, tc := range cases {
		doc, div := editable(t, "a")
		if err := e.Insert(composer(div, site.StrategyContentEditable), "b", tc.mode); err != nil {
			t.Fatalf("%s: %v", tc.mode, err)
		}
		if got, _ := div.Text(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.mode, got, tc.want)
		}
		if pos, ok := doc.Caret(div); !ok || pos != len(tc.want) {
			t.Errorf("%s: caret got %d,%v", tc.mode, pos, ok)
		}
		assertOneBubblingInput(t, doc)
		if n := len(doc.EventsOf("compositionstart")); n != 0 {
			t.Errorf("%s: unexpected composition events: %d", tc.mode, n)
		}
	}
}

func TestInsert_EditablePreservesSiblings(t *testing.T) {
	doc, div := editable(t, `<p>one <b>two</b></p>`)
	if err := New(nil).Insert(composer(div, site.StrategyContentEditable), "zero ", ModePrefix); err != nil {
		t.Fatal(err)
	}
	if got, _ := div.Text(); got != "zero one two" {
		t.Fatalf("text: got %q", got)
	}
	if doc.Query("p b") == nil {
		t.Fatal("inline structure lost")
	}
}

func TestInsert_EditableCursor(t *testing.T) {
	doc, div := editable(t, `ab<i>cd</i>ef`)
	doc.Select(div, 2, 4)
	if err := New(nil).Insert(composer(div, site.StrategyContentEditable), "X", ModeCursor); err != nil {
		t.Fatal(err)
	}
	if got, _ := div.Text(); got != "abXef" {
		t.Fatalf("text: got %q", got)
	}
	if doc.Query("i") == nil {
		t.Fatal("inline element dropped")
	}
	if pos, _ := doc.Caret(div); pos != 3 {
		t.Fatalf("caret: got %d, want 3", pos)
	}
}

func TestInsert_Composition(t *testing.T) {
	doc, div := editable(t, "")
	if err := New(nil).Insert(composer(div, site.StrategyComposition), "你好", ModeSuffix); err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, r := range doc.Events() {
		types = append(types, r.Event.Type)
		if r.Event.Data != "你好" {
			t.Errorf("%s data: got %q", r.Event.Type, r.Event.Data)
		}
	}
	want := []string{"compositionstart", "compositionupdate", "input", "compositionend"}
	if len(types) != len(want) {
		t.Fatalf("events: got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events: got %v, want %v", types, want)
		}
	}
	assertOneBubblingInput(t, doc)
}

func TestInsert_CompositionIgnoredOnFormControl(t *testing.T) {
	doc, ta := textarea(t, "")
	if err := New(nil).Insert(composer(ta, site.StrategyComposition), "x", ModeReplace); err != nil {
		t.Fatal(err)
	}
	if n := len(doc.Events()); n != 1 {
		t.Fatalf("events: got %d, want 1", n)
	}
}

func TestInsert_StaleTargets(t *testing.T) {
	e := New(nil)

	doc := memdom.MustParse("https://claude.ai/", `<body><div id="w"><textarea>keep</textarea></div></body>`)
	ta := doc.Query("textarea")
	c := composer(ta, site.StrategyFormValue)
	doc.Remove(doc.Query("#w"))
	if err := e.Insert(c, "x", ModeReplace); !errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("detached: got %v, want stale target", err)
	}
	if got, _ := ta.Value(); got != "keep" {
		t.Fatalf("detached element mutated: %q", got)
	}

	doc2 := memdom.MustParse("https://claude.ai/", `<body><textarea readonly>keep</textarea></body>`)
	ro := doc2.Query("textarea")
	if err := e.Insert(composer(ro, site.StrategyFormValue), "x", ModeSuffix); !errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("readonly: got %v, want stale target", err)
	}
	if len(doc2.Events()) != 0 {
		t.Fatal("events dispatched on stale target")
	}

	doc3, div := editable(t, "a")
	dc := composer(div, site.StrategyContentEditable)
	doc3.Remove(div)
	if err := e.Insert(dc, "b", ModeSuffix); !errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("detached editable: got %v, want stale target", err)
	}
	if got, _ := div.Text(); got != "a" {
		t.Fatalf("detached editable mutated: %q", got)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMode(%q): got %q,%v", m, got, err)
		}
	}
	if got, _ := ParseMode(" Replace "); got != ModeReplace {
		t.Errorf("ParseMode case: got %q", got)
	}
	if _, err := ParseMode("overwrite"); !errors.Is(err, fault.ErrConfig) {
		t.Errorf("ParseMode(overwrite): got %v", err)
	}
	_, ta := textarea(t, "")
	if err := New(nil).Insert(composer(ta, site.StrategyFormValue), "x", Mode("overwrite")); !errors.Is(err, fault.ErrConfig) {
		t.Errorf("Insert with bad mode: got %v", err)
	}
}

// oneStep is an element that takes insertions as a single dom.Edit.
type oneStep struct {
	*memdom.Element
	edits []dom.Edit
	err   error
}

func (o *oneStep) Apply(ed dom.Edit) error {
	o.edits = append(o.edits, ed)
	return o.err
}

func TestInsert_ApplierGetsOneEdit(t *testing.T) {
	cases := []struct {
		mode     Mode
		strategy site.Strategy
		el       func(t *testing.T) *memdom.Element
		place    dom.Placement
		events   []string
	}{
		{ModeReplace, site.StrategyFormValue, func(t *testing.T) *memdom.Element { _, ta := textarea(t, "x"); return ta }, dom.PlaceReplace, []string{"input"}},
		{ModeCursor, site.StrategyComposition, func(t *testing.T) *memdom.Element { _, ta := textarea(t, "x"); return ta }, dom.PlaceSelection, []string{"input"}},
		{ModePrefix, site.StrategyContentEditable, func(t *testing.T) *memdom.Element { _, ce := editable(t, "a"); return ce }, dom.PlaceStart, []string{"input"}},
		{ModeSuffix, site.StrategyComposition, func(t *testing.T) *memdom.Element { _, ce := editable(t, "a"); return ce },
			dom.PlaceEnd, []string{"compositionstart", "compositionupdate", "input", "compositionend"}},
	}
	for _, tc := range cases {
		el := &oneStep{Element: tc.el(t)}
		c := detect.NewComposer(el, tc.strategy, "test")
		if err := New(nil).Insert(c, "go", tc.mode); err != nil {
			t.Fatalf("%s: %v", tc.mode, err)
		}
		if len(el.edits) != 1 {
			t.Fatalf("%s: edits: got %d, want 1", tc.mode, len(el.edits))
		}
		ed := el.edits[0]
		if ed.Place != tc.place || ed.Text != "go" {
			t.Errorf("%s: edit: got %q %q, want %q go", tc.mode, ed.Place, ed.Text, tc.place)
		}
		var types []string
		for _, ev := range ed.Events {
			if !ev.Bubbles {
				t.Errorf("%s: %s does not bubble", tc.mode, ev.Type)
			}
			types = append(types, ev.Type)
		}
		if strings.Join(types, ",") != strings.Join(tc.events, ",") {
			t.Errorf("%s: events: got %v, want %v", tc.mode, types, tc.events)
		}
	}
}

func TestInsert_ApplierStaleAndFailure(t *testing.T) {
	_, ta := textarea(t, "x")

	el := &oneStep{Element: ta, err: fault.Stale("element detached")}
	err := New(nil).Insert(detect.NewComposer(el, site.StrategyFormValue, "test"), "go", ModeSuffix)
	var stale *fault.StaleTargetError
	if !errors.As(err, &stale) || stale.Reason != "element detached" {
		t.Fatalf("stale apply: got %v", err)
	}

	el = &oneStep{Element: ta, err: errors.New("cdp: connection closed")}
	err = New(nil).Insert(detect.NewComposer(el, site.StrategyFormValue, "test"), "go", ModeSuffix)
	if err == nil || errors.Is(err, fault.ErrStaleTarget) {
		t.Fatalf("failed apply: got %v, want a plain error", err)
	}
	if v, _ := ta.Value(); v != "x" {
		t.Fatalf("value: got %q, want x untouched", v)
	}
}
