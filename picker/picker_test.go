package picker

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/promptdock/dbopen"
	"github.com/hazyhaar/promptdock/library"
)

func testSource(t *testing.T) *library.Library {
	t.Helper()
	db := dbopen.OpenMemory(t)
	lib, err := library.NewWithDB(db, &library.Config{}, nil)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	ctx := context.Background()
	for _, p := range []library.Prompt{
		{ID: "a", Name: "review", Title: "Code review", Content: "Review this {{lang:Go}} code"},
		{ID: "b", Name: "summary", Title: "Summarize", Content: "Summarize the text below."},
		{ID: "c", Name: "translate", Title: "Translate", Content: "Translate to {{target}} from {{source:English}}"},
	} {
		p := p
		if _, err := lib.SavePrompt(ctx, &p); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}
	return lib
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m *Model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func TestModel_ListsAll(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	view := m.View()
	for _, name := range []string{"review", "summary", "translate"} {
		if !strings.Contains(view, name) {
			t.Errorf("view missing %q:\n%s", name, view)
		}
	}
}

func TestModel_Filter(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	send(m, runes("sum"))
	if len(m.rows) != 1 || m.rows[0].prompt.ID != "b" {
		t.Fatalf("filtered rows: got %d, want only b", len(m.rows))
	}
	if strings.Contains(m.View(), "translate") {
		t.Fatal("filtered view still lists translate")
	}

	send(m, runes("zzz"))
	if !strings.Contains(m.View(), "no prompt matches") {
		t.Fatalf("empty result not shown:\n%s", m.View())
	}
	send(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Chosen() != nil {
		t.Fatal("enter on empty list chose a prompt")
	}
}

func TestModel_PickWithoutVariables(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	send(m, runes("summ"))
	cmd := send(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Done() {
		t.Fatal("prompt without placeholders should finish on enter")
	}
	if m.Chosen().ID != "b" {
		t.Fatalf("chosen: got %q, want b", m.Chosen().ID)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("enter did not quit")
	}
}

func TestModel_Navigation(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	send(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Fatalf("cursor after up at top: got %d, want 0", m.cursor)
	}
	send(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Fatalf("cursor clamps at bottom: got %d, want 2", m.cursor)
	}
	if !strings.Contains(m.View(), "▸ translate") {
		t.Fatalf("selected row not marked:\n%s", m.View())
	}
}

func TestModel_Variables(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	send(m, runes("transl"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.stage != stageVars {
		t.Fatal("expected placeholder stage")
	}
	view := m.View()
	if !strings.Contains(view, "target") || !strings.Contains(view, "source") {
		t.Fatalf("placeholder labels missing:\n%s", view)
	}

	send(m, runes("French"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.Done() {
		t.Fatal("enter on first of two fields must not finish")
	}
	send(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Done() {
		t.Fatal("enter on last field should finish")
	}
	got := m.Values()
	if got["target"] != "French" || got["source"] != "English" {
		t.Fatalf("values: got %v", got)
	}

	out, err := library.Render(context.Background(), m.Chosen(), library.StaticValues(got))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Translate to French from English" {
		t.Fatalf("render: got %q", out)
	}
}

func TestModel_Escape(t *testing.T) {
	m := NewModel(context.Background(), testSource(t), Options{})
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	if !m.Cancelled() || m.Done() {
		t.Fatal("esc should cancel")
	}
}

func TestModel_Recommendations(t *testing.T) {
	lib := testSource(t)
	ctx := context.Background()
	if err := lib.RecordUsage(ctx, "c"); err != nil {
		t.Fatal(err)
	}

	m := NewModel(ctx, lib, Options{ShowRecommendations: true})
	if len(m.rows) != 3 {
		t.Fatalf("rows: got %d, want 3 with no duplicate", len(m.rows))
	}
	if !m.rows[0].recommended || m.rows[0].prompt.ID != "c" {
		t.Fatalf("first row: got %q recommended=%v, want c recommended", m.rows[0].prompt.ID, m.rows[0].recommended)
	}
	view := m.View()
	if !strings.Contains(view, "recommended") || !strings.Contains(view, "all prompts") {
		t.Fatalf("sections missing:\n%s", view)
	}

	send(m, runes("rev"))
	if strings.Contains(m.View(), "recommended") {
		t.Fatal("recommendations shown while filtering")
	}

	off := NewModel(ctx, lib, Options{})
	if strings.Contains(off.View(), "recommended") {
		t.Fatal("recommendations shown when disabled")
	}
}

func TestVarsModel_NoVariables(t *testing.T) {
	p := &library.Prompt{ID: "x", Name: "plain", Content: "plain"}
	m := NewVarsModel(context.Background(), p, nil)
	if !m.Done() {
		t.Fatal("no placeholders should be done at once")
	}
	vals, err := Resolver{}.Resolve(context.Background(), p, nil)
	if err != nil || len(vals) != 0 {
		t.Fatalf("resolve: got %v, %v", vals, err)
	}
}
