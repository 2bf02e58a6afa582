package hotkey

import (
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/fault"
)

// Chord is a modifier set plus exactly one key. Key is stored lower-case.
type Chord struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
	Key   string
}

var modifierNames = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"meta":    "meta",
	"cmd":     "meta",
	"command": "meta",
}

var keyAliases = map[string]string{
	"space": " ",
	"esc":   "escape",
	"del":   "delete",
}

// ParseChord parses "MOD+MOD+KEY". Modifiers are ctrl, shift, alt and meta
// (with the usual aliases), in any order and case.
func ParseChord(s string) (Chord, error) {
	var c Chord
	if strings.TrimSpace(s) == "" {
		return c, fault.Config(fault.KindChord, s, "empty chord")
	}
	parts := strings.Split(s, "+")
	for i, raw := range parts {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok == "" {
			return Chord{}, fault.Config(fault.KindChord, s, "empty segment")
		}
		mod, isMod := modifierNames[tok]
		last := i == len(parts)-1
		if last {
			if isMod {
				return Chord{}, fault.Config(fault.KindChord, s, "no non-modifier key")
			}
			if alias, ok := keyAliases[tok]; ok {
				tok = alias
			}
			c.Key = tok
			break
		}
		if !isMod {
			return Chord{}, fault.Config(fault.KindChord, s, "unknown modifier "+raw)
		}
		switch mod {
		case "ctrl":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt":
			c.Alt = true
		case "meta":
			c.Meta = true
		}
	}
	return c, nil
}

// MustParseChord is ParseChord for constants.
func MustParseChord(s string) Chord {
	c, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the chord with modifiers in canonical order.
func (c Chord) String() string {
	var b strings.Builder
	for _, m := range []struct {
		on   bool
		name string
	}{{c.Ctrl, "Ctrl"}, {c.Shift, "Shift"}, {c.Alt, "Alt"}, {c.Meta, "Meta"}} {
		if m.on {
			b.WriteString(m.name)
			b.WriteByte('+')
		}
	}
	b.WriteString(keyLabel(c.Key))
	return b.String()
}

func keyLabel(k string) string {
	switch {
	case k == " ":
		return "Space"
	case utf8.RuneCountInString(k) == 1:
		return strings.ToUpper(k)
	case k == "":
		return ""
	}
	r, n := utf8.DecodeRuneInString(k)
	return strings.ToUpper(string(r)) + k[n:]
}

// Matches reports whether ev carries exactly this chord's modifiers and key.
func (c Chord) Matches(ev dom.KeyEvent) bool {
	if ev.Ctrl() != c.Ctrl || ev.Shift() != c.Shift || ev.Alt() != c.Alt || ev.Meta() != c.Meta {
		return false
	}
	return strings.EqualFold(ev.Key(), c.Key)
}
