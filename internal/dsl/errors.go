package dsl

import (
	"errors"
	"strings"
)

// ErrDefinition is matched by every DefinitionError.
var ErrDefinition = errors.New("dvh: definition error")

// DefinitionError reports an author mistake in a template, a default or the
// model: a mandatory path that does not resolve, a failed default, a path
// deeper than two segments or a missing template.
type DefinitionError struct {
	Entity  string // "Hub \"h1\""
	Path    string
	Message string
	Cause   error
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString("definition error")
	if e.Entity != "" {
		b.WriteString(" for ")
		b.WriteString(e.Entity)
	}
	if e.Path != "" {
		b.WriteString(" at '")
		b.WriteString(e.Path)
		b.WriteString("'")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Cause }

func (e *DefinitionError) Is(target error) bool { return target == ErrDefinition }

// NewDefinitionError builds a DefinitionError for entity e (may be nil).
func NewDefinitionError(e *Entity, path, msg string, cause error) *DefinitionError {
	de := &DefinitionError{Path: path, Message: msg, Cause: cause}
	if e != nil {
		de.Entity = e.String()
	}
	return de
}
