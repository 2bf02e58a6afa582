package picker

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/promptdock/library"
)

// ErrCancelled is returned when the user leaves the picker with Esc.
var ErrCancelled = errors.New("picker: cancelled")

// Terminal selects the streams the picker runs on. Zero values use the
// process terminal.
type Terminal struct {
	In        io.Reader
	Out       io.Writer
	AltScreen bool
}

func (t Terminal) programOptions(ctx context.Context) []tea.ProgramOption {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	if t.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return opts
}

// Selection is what Pick returns: the prompt and the placeholder values.
type Selection struct {
	Prompt *library.Prompt
	Values map[string]string
}

// Pick runs the full picker: list, then placeholders.
func Pick(ctx context.Context, src Source, opts Options, term Terminal) (*Selection, error) {
	m, err := run(ctx, NewModel(ctx, src, opts), term)
	if err != nil {
		return nil, err
	}
	return &Selection{Prompt: m.Chosen(), Values: m.Values()}, nil
}

func run(ctx context.Context, m *Model, term Terminal) (*Model, error) {
	if m.Done() {
		return m, nil
	}
	final, err := tea.NewProgram(m, term.programOptions(ctx)...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("picker: run: %w", err)
	}
	fm, ok := final.(*Model)
	if !ok || fm.Cancelled() || !fm.Done() {
		return nil, ErrCancelled
	}
	return fm, nil
}

// Resolver asks for placeholder values on the terminal. It implements
// library.VariableResolver.
type Resolver struct {
	Terminal Terminal
}

// Resolve implements library.VariableResolver.
func (r Resolver) Resolve(ctx context.Context, p *library.Prompt, vars []library.Variable) (map[string]string, error) {
	m, err := run(ctx, NewVarsModel(ctx, p, vars), r.Terminal)
	if err != nil {
		return nil, err
	}
	return m.Values(), nil
}

// Resolver returns the values picked with s, so library.Render does not
// ask again.
func (s *Selection) Resolver() library.VariableResolver {
	return library.StaticValues(s.Values)
}

var _ library.VariableResolver = Resolver{}
