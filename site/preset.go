package site

import "regexp"

var (
	editorSelectors  = []string{`textarea`, `div[contenteditable="true"]`}
	chatgptSelectors = []string{`textarea[data-id="root"]`, `textarea`, `div[contenteditable="true"]`}
)

type preset struct {
	id        string
	pattern   string
	selectors []string
}

var presets = []preset{
	{"chatgpt", `chat\.openai\.com|chatgpt\.com`, chatgptSelectors},
	{"claude", `claude\.ai`, editorSelectors},
	{"gemini", `gemini\.google\.com`, editorSelectors},
	{"deepseek", `deepseek\.com`, editorSelectors},
	{"qwen", `tongyi\.aliyun|qwen`, editorSelectors},
}

// Presets returns fresh copies of the built-in profiles, in registration
// order. Patterns match case-insensitively; every preset writes form-value.
func Presets() []*Profile {
	out := make([]*Profile, 0, len(presets))
	for _, p := range presets {
		re := regexp.MustCompile(`(?i)` + p.pattern)
		out = append(out, &Profile{
			ID:        p.id,
			Pattern:   p.pattern,
			Selectors: append([]string(nil), p.selectors...),
			Strategy:  StrategyFormValue,
			match:     re.MatchString,
		})
	}
	return out
}
