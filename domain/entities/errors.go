package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound matches every *NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrPatternCycle is returned when {@ref} composition loops back on itself
	ErrPatternCycle = errors.New("pattern composition cycle")

	// ErrNoFallback is returned when fallback intent is requested for a template without one
	ErrNoFallback = errors.New("no fallback defined")

	// ErrActionTimeout is wrapped by drivers when an element never reached the required state
	ErrActionTimeout = errors.New("action timeout")
)

// LoadError reports a missing or malformed pattern source
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a symbolic path absent from a table.
// Available lists the keys present at the deepest level of Path that exists.
type NotFoundError struct {
	Kind      string
	Path      string
	Parent    string
	Available []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Path)
	if len(e.Available) == 0 {
		return msg
	}
	scope := e.Parent
	if scope == "" {
		scope = "<root>"
	}
	return fmt.Sprintf("%s (available under %s: %s)", msg, scope, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ActionError is a permanent failure of a browser action after the fallback retry
type ActionError struct {
	Action        ActionType
	Path          string
	Selector      string
	FallbackTried bool
	Err           error
}

func (e *ActionError) Error() string {
	suffix := ""
	if e.FallbackTried {
		suffix = " (after fallback retry)"
	}
	return fmt.Sprintf("%s %s [%s] failed%s: %v", e.Action, e.Path, e.Selector, suffix, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
