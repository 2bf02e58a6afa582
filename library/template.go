package library

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Placeholders look like {{name}} or {{name:default}}. Names are word
// characters, dots and dashes; the default runs to the closing braces.
var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*(?::([^}]*))?\}\}`)

// Variable is one template placeholder.
type Variable struct {
	Name       string `json:"name"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// Variables lists the placeholders of content in first-appearance order.
// A name used twice is reported once. Its first occurrence decides the
// default, and Fill applies that default to every occurrence.
func Variables(content string) []Variable {
	var out []Variable
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		if seen[name] {
			continue
		}
		seen[name] = true
		v := Variable{Name: name}
		if m[4] >= 0 {
			v.Default = content[m[4]:m[5]]
			v.HasDefault = true
		}
		out = append(out, v)
	}
	return out
}

// MissingVariableError reports placeholders with neither a value nor a
// default.
type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return "library: missing template values: " + strings.Join(e.Names, ", ")
}

// Fill substitutes every placeholder. values win over defaults. The
// substituted text is literal; it is never re-scanned for placeholders.
func Fill(content string, values map[string]string) (string, error) {
	defaults := make(map[string]Variable)
	for _, v := range Variables(content) {
		defaults[v.Name] = v
	}
	var missing []string
	seen := make(map[string]bool)
	out := placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		if d := defaults[name]; d.HasDefault {
			return d.Default
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})
	if len(missing) > 0 {
		return "", &MissingVariableError{Names: missing}
	}
	return out, nil
}

// VariableResolver supplies placeholder values before a prompt is
// inserted. Resolve may block on the user; a non-nil error aborts the
// insertion.
type VariableResolver interface {
	Resolve(ctx context.Context, p *Prompt, vars []Variable) (map[string]string, error)
}

// ResolverFunc adapts a function to VariableResolver.
type ResolverFunc func(ctx context.Context, p *Prompt, vars []Variable) (map[string]string, error)

func (f ResolverFunc) Resolve(ctx context.Context, p *Prompt, vars []Variable) (map[string]string, error) {
	return f(ctx, p, vars)
}

// StaticValues resolves from a fixed map; defaults cover the rest.
type StaticValues map[string]string

func (s StaticValues) Resolve(_ context.Context, _ *Prompt, _ []Variable) (map[string]string, error) {
	return s, nil
}

// Render resolves the placeholders of p through r and returns the text
// to insert. A prompt without placeholders never calls r. A nil r leaves
// only defaults.
func Render(ctx context.Context, p *Prompt, r VariableResolver) (string, error) {
	vars := Variables(p.Content)
	if len(vars) == 0 {
		return p.Content, nil
	}
	var values map[string]string
	if r != nil {
		var err error
		values, err = r.Resolve(ctx, p, vars)
		if err != nil {
			return "", fmt.Errorf("library: resolve %s: %w", p.ID, err)
		}
	}
	return Fill(p.Content, values)
}
