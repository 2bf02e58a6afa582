// Package site resolves which site profile applies to a page URL.
//
// A profile carries a URL predicate, the ordered composer selectors to scan
// for, an optional strategy tag forcing how composers are written to, and
// free-form extras. Presets for the common chat frontends are registered
// first; user profiles follow unless they ask to take precedence.
package site

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"

	"github.com/hazyhaar/promptdock/fault"
	"github.com/hazyhaar/promptdock/idgen"
)

// Strategy declares how a composer's content is mutated and notified.
type Strategy string

const (
	// StrategyAuto lets the detector pick from the element itself.
	StrategyAuto            Strategy = ""
	StrategyFormValue       Strategy = "form-value"
	StrategyComposition     Strategy = "composition"
	StrategyContentEditable Strategy = "contenteditable"
)

// ParseStrategy validates a strategy tag. The empty string means auto.
// "value" is accepted as an alias of form-value.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StrategyAuto, nil
	case "form-value", "value":
		return StrategyFormValue, nil
	case "composition":
		return StrategyComposition, nil
	case "contenteditable":
		return StrategyContentEditable, nil
	}
	return "", fault.Config(fault.KindStrategy, s, "want form-value, composition or contenteditable")
}

// Predicate decides whether a profile applies to a URL. It must be pure.
type Predicate func(url string) bool

// Profile is one site profile. Profiles are immutable once registered.
type Profile struct {
	ID        string
	Pattern   string // source regex, empty for code-defined predicates
	Selectors []string
	Strategy  Strategy
	Extra     map[string]string

	match Predicate
}

// Match evaluates the predicate. A panicking predicate propagates; the
// Registry is the one place that absorbs it.
func (p *Profile) Match(url string) bool {
	return p.match(url)
}

// Descriptor is the serialisable form of a user profile.
type Descriptor struct {
	ID        string            `json:"id,omitempty" yaml:"id"`
	Pattern   string            `json:"match_pattern" yaml:"match_pattern"`
	Selectors []string          `json:"input_selectors" yaml:"input_selectors"`
	Strategy  string            `json:"strategy,omitempty" yaml:"strategy"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra"`
	// Override places the profile ahead of the presets.
	Override bool `json:"override,omitempty" yaml:"override"`
}

var newCustomID = idgen.Prefixed("custom-", idgen.New)

// Compile validates d and builds the profile. The pattern is compiled once.
// An empty ID becomes "custom-<uuid>".
func Compile(d Descriptor) (*Profile, error) {
	if strings.TrimSpace(d.Pattern) == "" {
		return nil, fault.Config(fault.KindPattern, d.Pattern, "empty pattern")
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return nil, &fault.ConfigError{Kind: fault.KindPattern, Value: d.Pattern, Cause: err}
	}
	strategy, err := ParseStrategy(d.Strategy)
	if err != nil {
		return nil, err
	}
	sels, err := validSelectors(d.Selectors)
	if err != nil {
		return nil, err
	}
	id := d.ID
	if id == "" {
		id = newCustomID()
	}
	return &Profile{
		ID:        id,
		Pattern:   d.Pattern,
		Selectors: sels,
		Strategy:  strategy,
		Extra:     copyExtra(d.Extra),
		match:     re.MatchString,
	}, nil
}

// New builds a profile from a code-defined predicate.
func New(id string, match Predicate, selectors []string, strategy Strategy) (*Profile, error) {
	if id == "" {
		return nil, fault.Config(fault.KindSite, id, "empty id")
	}
	if match == nil {
		return nil, fault.Config(fault.KindSite, id, "nil predicate")
	}
	sels, err := validSelectors(selectors)
	if err != nil {
		return nil, err
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	return &Profile{ID: id, Selectors: sels, Strategy: strategy, match: match}, nil
}

func validSelectors(in []string) ([]string, error) {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := cascadia.Compile(s); err != nil {
			return nil, &fault.ConfigError{Kind: fault.KindSelector, Value: s, Cause: err}
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fault.Config(fault.KindSelector, strings.Join(in, ","), "at least one selector required")
	}
	return out, nil
}

func copyExtra(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Registry holds the profiles of one page, in resolution order.
type Registry struct {
	mu       sync.RWMutex
	profiles []*Profile
	faulted  map[string]bool // predicate faults already logged
	logger   *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{faulted: make(map[string]bool), logger: logger}
}

// NewDefault returns a registry seeded with the preset profiles.
func NewDefault(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.profiles = append(r.profiles, Presets()...)
	return r
}

// Register appends p. IDs are unique within the registry.
func (r *Registry) Register(p *Profile) error {
	return r.add(p, false)
}

// RegisterCustom compiles d and registers it, ahead of every preset when
// d.Override is set.
func (r *Registry) RegisterCustom(d Descriptor) (*Profile, error) {
	p, err := Compile(d)
	if err != nil {
		return nil, err
	}
	if err := r.add(p, d.Override); err != nil {
		return nil, err
	}
	r.logger.Info("site: custom profile registered",
		"id", p.ID, "pattern", p.Pattern, "override", d.Override)
	return p, nil
}

func (r *Registry) add(p *Profile, front bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.profiles {
		if q.ID == p.ID {
			return fault.Config(fault.KindSite, p.ID, "duplicate id")
		}
	}
	if front {
		r.profiles = append([]*Profile{p}, r.profiles...)
	} else {
		r.profiles = append(r.profiles, p)
	}
	return nil
}

// Remove drops the profile with id. Returns false if absent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.profiles {
		if p.ID == id {
			r.profiles = append(r.profiles[:i:i], r.profiles[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the profile with id, or nil.
func (r *Registry) Get(id string) *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Profiles returns the profiles in resolution order.
func (r *Registry) Profiles() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Profile(nil), r.profiles...)
}

// Resolve returns the first profile whose predicate accepts url, or nil.
// A panicking predicate counts as a non-match; it is logged once per profile.
func (r *Registry) Resolve(url string) *Profile {
	for _, p := range r.Profiles() {
		if r.safeMatch(p, url) {
			return p
		}
	}
	return nil
}

func (r *Registry) safeMatch(p *Profile, url string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			r.mu.Lock()
			first := !r.faulted[p.ID]
			r.faulted[p.ID] = true
			r.mu.Unlock()
			if first {
				r.logger.Warn("site: predicate fault, profile skipped",
					"id", p.ID, "error", fmt.Sprint(rec))
			}
		}
	}()
	return p.match(url)
}
