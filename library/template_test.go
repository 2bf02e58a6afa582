package library

import (
	"context"
	"errors"
	"testing"
)

func TestVariables_OrderAndDefaults(t *testing.T) {
	vars := Variables("Hi {{ name }}, translate {{text}} to {{lang:French}}. Again {{name:ignored}}.")
	if len(vars) != 3 {
		t.Fatalf("got %d variables, want 3: %+v", len(vars), vars)
	}
	want := []Variable{
		{Name: "name"},
		{Name: "text"},
		{Name: "lang", Default: "French", HasDefault: true},
	}
	for i := range want {
		if vars[i] != want[i] {
			t.Errorf("var[%d]: got %+v, want %+v", i, vars[i], want[i])
		}
	}
}

func TestVariables_EmptyDefault(t *testing.T) {
	vars := Variables("{{tone:}}")
	if len(vars) != 1 || !vars[0].HasDefault || vars[0].Default != "" {
		t.Fatalf("got %+v", vars)
	}
}

func TestFill(t *testing.T) {
	got, err := Fill("Translate {{text}} to {{lang:French}}.", map[string]string{"text": "bonjour"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "Translate bonjour to French."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, _ = Fill("{{lang:French}}", map[string]string{"lang": "German"})
	if got != "German" {
		t.Fatalf("value over default: got %q", got)
	}
}

func TestFill_ValuesAreLiteral(t *testing.T) {
	got, err := Fill("say {{a}}", map[string]string{"a": "{{b}}"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "say {{b}}" {
		t.Fatalf("got %q, want the value unexpanded", got)
	}
}

func TestFill_Missing(t *testing.T) {
	_, err := Fill("{{a}} {{b}} {{a}} {{c:x}}", nil)
	var missing *MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingVariableError", err)
	}
	if len(missing.Names) != 2 || missing.Names[0] != "a" || missing.Names[1] != "b" {
		t.Fatalf("names: got %v, want [a b]", missing.Names)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	plain := &Prompt{ID: "p", Content: "no placeholders"}
	called := false
	r := ResolverFunc(func(context.Context, *Prompt, []Variable) (map[string]string, error) {
		called = true
		return nil, nil
	})
	if got, _ := Render(ctx, plain, r); got != "no placeholders" || called {
		t.Fatalf("plain: got %q called=%v", got, called)
	}

	tmpl := &Prompt{ID: "t", Content: "Dear {{who}}"}
	got, err := Render(ctx, tmpl, StaticValues{"who": "Ada"})
	if err != nil || got != "Dear Ada" {
		t.Fatalf("static: got %q, %v", got, err)
	}

	errCancel := errors.New("cancelled")
	_, err = Render(ctx, tmpl, ResolverFunc(func(context.Context, *Prompt, []Variable) (map[string]string, error) {
		return nil, errCancel
	}))
	if !errors.Is(err, errCancel) {
		t.Fatalf("resolver error: got %v", err)
	}
}

func TestFill_RepeatedNameUsesFirstDefault(t *testing.T) {
	content := "{{x:a}} {{x:b}}"
	bare, err := Fill(content, nil)
	if err != nil {
		t.Fatal(err)
	}
	vars := Variables(content)
	prefilled, err := Fill(content, map[string]string{vars[0].Name: vars[0].Default})
	if err != nil {
		t.Fatal(err)
	}
	if bare != "a a" || prefilled != bare {
		t.Fatalf("without values %q, prefilled %q, want both %q", bare, prefilled, "a a")
	}

	_, err = Fill("{{y}} {{y:later}}", nil)
	var missing *MissingVariableError
	if !errors.As(err, &missing) || len(missing.Names) != 1 || missing.Names[0] != "y" {
		t.Fatalf("default after a bare first use: got %v, want y missing", err)
	}
}
