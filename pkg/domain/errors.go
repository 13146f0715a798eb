package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidConfiguration is returned when a story fails validation.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrHandlerNotFound is returned when an action references an unregistered handler.
var ErrHandlerNotFound = errors.New("handler not found")

// ErrHandlerCollision is returned when two providers register the same handler name.
var ErrHandlerCollision = errors.New("handler already registered")

// StructuralError is one validation finding.
type StructuralError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

// Validation error codes.
const (
	CodeDuplicate        = "duplicate"
	CodeUndeclared       = "undeclared_context"
	CodeUnknownAction    = "unknown_action"
	CodeUnknownState     = "unknown_state"
	CodeUnknownIntent    = "unknown_intent"
	CodeUnknownHandler   = "unknown_handler"
	CodeSelfLoop         = "self_loop"
	CodeMissingInitial   = "missing_initial"
	CodeStateWithoutAct  = "state_without_action"
	CodeActionNoState    = "action_without_state"
	CodeNameConflict     = "name_conflict"
	CodeUnsatisfiable    = "unsatisfiable_goal"
	CodeInvalidSettings  = "invalid_settings"
	CodeInvalidType      = "invalid_type"
	CodeInvalidStructure = "invalid_structure"
)
