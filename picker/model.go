// Package picker is the terminal prompt picker: type to filter the library
// by name or title, pick with the arrows and Enter, then fill in the
// template placeholders of the chosen prompt.
package picker

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/promptdock/library"
)

// Source is the part of the library the picker reads.
type Source interface {
	Search(ctx context.Context, query string) ([]*library.Prompt, error)
	Recommend(ctx context.Context) ([]*library.Prompt, error)
}

type stage int

const (
	stageList stage = iota
	stageVars
	stageDone
)

// Options tune the picker.
type Options struct {
	// ShowRecommendations lists recent and frequent prompts above the
	// results while the filter is empty.
	ShowRecommendations bool
	// Preview shortens prompt content for the listing. Nil cuts at one line.
	Preview func(content string) string
	// Title heads the list. Default: "Prompts".
	Title string
	// MaxRows bounds the visible rows. Default: 10.
	MaxRows int
}

func (o *Options) defaults() {
	if o.Preview == nil {
		o.Preview = firstLine
	}
	if o.Title == "" {
		o.Title = "Prompts"
	}
	if o.MaxRows <= 0 {
		o.MaxRows = 10
	}
}

type row struct {
	prompt      *library.Prompt
	recommended bool
}

// Model is the bubbletea model behind Pick and Resolver.
type Model struct {
	ctx  context.Context
	src  Source
	opts Options

	stage  stage
	filter textinput.Model
	rows   []row
	cursor int
	err    error

	chosen *library.Prompt
	vars   []library.Variable
	inputs []textinput.Model
	focus  int

	cancelled bool
}

// NewModel builds a list-stage model over src.
func NewModel(ctx context.Context, src Source, opts Options) *Model {
	opts.defaults()
	ti := textinput.New()
	ti.Placeholder = "filter by name or title"
	ti.Prompt = "> "
	ti.Focus()

	m := &Model{ctx: ctx, src: src, opts: opts, filter: ti}
	m.refresh()
	return m
}

// NewVarsModel builds a model that only asks for the placeholders of p.
func NewVarsModel(ctx context.Context, p *library.Prompt, vars []library.Variable) *Model {
	opts := Options{}
	opts.defaults()
	m := &Model{ctx: ctx, opts: opts}
	m.choose(p, vars)
	return m
}

func (m *Model) refresh() {
	query := strings.TrimSpace(m.filter.Value())
	var rows []row
	seen := make(map[string]bool)

	if query == "" && m.opts.ShowRecommendations {
		rec, err := m.src.Recommend(m.ctx)
		if err != nil {
			m.err = err
			return
		}
		for _, p := range rec {
			seen[p.ID] = true
			rows = append(rows, row{prompt: p, recommended: true})
		}
	}
	found, err := m.src.Search(m.ctx, query)
	if err != nil {
		m.err = err
		return
	}
	for _, p := range found {
		if !seen[p.ID] {
			rows = append(rows, row{prompt: p})
		}
	}
	m.err = nil
	m.rows = rows
	if m.cursor >= len(rows) {
		m.cursor = max(0, len(rows)-1)
	}
}

func (m *Model) choose(p *library.Prompt, vars []library.Variable) {
	m.chosen = p
	m.vars = vars
	if len(vars) == 0 {
		m.stage = stageDone
		return
	}
	m.inputs = make([]textinput.Model, len(vars))
	for i, v := range vars {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = v.Name
		if v.HasDefault {
			ti.SetValue(v.Default)
		}
		m.inputs[i] = ti
	}
	m.focus = 0
	m.inputs[0].Focus()
	m.stage = stageVars
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	switch m.stage {
	case stageList:
		return m.updateList(msg)
	case stageVars:
		return m.updateVars(msg)
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if len(m.rows) == 0 {
				return m, nil
			}
			p := m.rows[m.cursor].prompt
			m.choose(p, library.Variables(p.Content))
			if m.stage == stageDone {
				return m, tea.Quit
			}
			return m, textinput.Blink
		}
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.cursor = 0
		m.refresh()
	}
	return m, cmd
}

func (m *Model) updateVars(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "tab", "down":
			if m.focus == len(m.inputs)-1 && key.String() == "enter" {
				m.stage = stageDone
				return m, tea.Quit
			}
			m.moveFocus(1)
			return m, nil
		case "shift+tab", "up":
			m.moveFocus(-1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) moveFocus(delta int) {
	next := m.focus + delta
	if next < 0 || next >= len(m.inputs) {
		return
	}
	m.inputs[m.focus].Blur()
	m.focus = next
	m.inputs[m.focus].Focus()
}

// View implements tea.Model.
func (m *Model) View() string {
	switch m.stage {
	case stageVars:
		return m.viewVars()
	case stageDone:
		return ""
	}
	return m.viewList()
}

func (m *Model) viewList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(labelStyle.Render("  no prompt matches"))
		b.WriteString("\n")
	}

	start := 0
	if m.cursor >= m.opts.MaxRows {
		start = m.cursor - m.opts.MaxRows + 1
	}
	end := min(len(m.rows), start+m.opts.MaxRows)
	lastRecommended := start > 0 && m.rows[start-1].recommended
	for i := start; i < end; i++ {
		r := m.rows[i]
		if i == start && r.recommended {
			b.WriteString(sectionStyle.Render("recommended"))
			b.WriteString("\n")
		}
		if (i == start && !r.recommended && m.hasRecommended()) || (lastRecommended && !r.recommended) {
			b.WriteString(sectionStyle.Render("all prompts"))
			b.WriteString("\n")
		}
		lastRecommended = r.recommended

		label := r.prompt.Name
		if r.prompt.Title != "" {
			label += " · " + r.prompt.Title
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + label))
		} else {
			b.WriteString(itemStyle.Render(label))
		}
		b.WriteString("\n")
		if i == m.cursor {
			b.WriteString(previewStyle.Render(m.opts.Preview(r.prompt.Content)))
			b.WriteString("\n")
		}
	}

	b.WriteString(footerStyle.Render("↑/↓ move  enter pick  esc cancel"))
	return frameStyle.Render(b.String())
}

func (m *Model) hasRecommended() bool {
	return len(m.rows) > 0 && m.rows[0].recommended
}

func (m *Model) viewVars() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.chosen.Name))
	b.WriteString("\n")
	for i, v := range m.vars {
		marker := "  "
		if i == m.focus {
			marker = "▸ "
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%s%s: ", marker, v.Name)))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("tab next  enter on last field inserts  esc cancel"))
	return frameStyle.Render(b.String())
}

// Chosen returns the picked prompt, nil if none yet.
func (m *Model) Chosen() *library.Prompt { return m.chosen }

// Done reports whether a prompt was picked and every field confirmed.
func (m *Model) Done() bool { return m.stage == stageDone && !m.cancelled }

// Cancelled reports whether the user pressed Esc or Ctrl+C.
func (m *Model) Cancelled() bool { return m.cancelled }

// Values returns the placeholder values typed so far.
func (m *Model) Values() map[string]string {
	out := make(map[string]string, len(m.vars))
	for i, v := range m.vars {
		out[v.Name] = m.inputs[i].Value()
	}
	return out
}

func firstLine(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	if r := []rune(line); len(r) > 72 {
		return string(r[:72]) + "…"
	}
	return line
}
