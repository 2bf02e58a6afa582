// Package fault defines the error taxonomy shared by the composer core.
//
// Config and stale-target errors are surfaced to callers. Predicate and
// subscriber faults never leave the component that hit them: they are
// logged and absorbed.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches any *ConfigError via errors.Is.
	ErrConfig = errors.New("config error")
	// ErrStaleTarget matches any *StaleTargetError via errors.Is.
	ErrStaleTarget = errors.New("stale target")
)

// ConfigKind names what was being configured when registration failed.
type ConfigKind string

const (
	KindPattern  ConfigKind = "pattern"
	KindSelector ConfigKind = "selector"
	KindStrategy ConfigKind = "strategy"
	KindChord    ConfigKind = "chord"
	KindSite     ConfigKind = "site"
	KindMode     ConfigKind = "mode"
)

// ConfigError is returned at registration time for a bad regex, a malformed
// chord descriptor, an unknown strategy tag and the like.
type ConfigError struct {
	Kind  ConfigKind
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: invalid %s %q: %v", e.Kind, e.Value, e.Cause)
	}
	return fmt.Sprintf("config: invalid %s %q", e.Kind, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Config builds a ConfigError with a plain message as cause.
func Config(kind ConfigKind, value, msg string) *ConfigError {
	return &ConfigError{Kind: kind, Value: value, Cause: errors.New(msg)}
}

// StaleTargetError is returned when an insertion targets an element that left
// the document or is no longer editable. No mutation happened.
type StaleTargetError struct {
	Reason string
}

func (e *StaleTargetError) Error() string {
	return fmt.Sprintf("insert: stale target: %s", e.Reason)
}

func (e *StaleTargetError) Is(target error) bool { return target == ErrStaleTarget }

// Stale builds a StaleTargetError.
func Stale(reason string) *StaleTargetError {
	return &StaleTargetError{Reason: reason}
}
