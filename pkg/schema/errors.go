package schema

import (
	"errors"
	"fmt"
	"strings"
)

// SlotError is one context that failed its type.
type SlotError struct {
	Context string
	Reason  string
	// Value is nil when the context is missing.
	Value any
}

func (e *SlotError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("context %q: %s", e.Context, e.Reason)
	}
	return fmt.Sprintf("context %q: %s (got %T)", e.Context, e.Reason, e.Value)
}

// Errors collects slot errors in context name order.
type Errors []*SlotError

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	lines := make([]string, len(e))
	for i, se := range e {
		lines[i] = se.Error()
	}
	return fmt.Sprintf("%d invalid contexts:\n  - %s", len(e), strings.Join(lines, "\n  - "))
}

// SlotErrors unwraps the slot errors carried by err, if any.
func SlotErrors(err error) []*SlotError {
	var errs Errors
	if errors.As(err, &errs) {
		return errs
	}
	return nil
}
