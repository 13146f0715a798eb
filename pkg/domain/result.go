package domain

import "fmt"

// FailureKind classifies a failed turn.
type FailureKind string

const (
	// ConfigurationError means the story cannot satisfy the request: a dangling
	// reference or an unreachable goal.
	ConfigurationError FailureKind = "ConfigurationError"
	// CycleDetected means the per-turn invocation bound tripped.
	CycleDetected FailureKind = "CycleDetected"
	// HandlerExecutionError means a handler failed or broke its output contract.
	HandlerExecutionError FailureKind = "HandlerExecutionError"
	// UnresolvedIntent means an unknown intent had no policy entry and no
	// global answer to fall back to.
	UnresolvedIntent FailureKind = "UnresolvedIntent"
)

// Result is the outcome of one turn: *Success or *Failure.
type Result interface {
	isResult()
}

// Success carries the next session. When Final is true the session is a
// fresh one positioned at the story's initial state.
type Success struct {
	Session  *Session  `json:"session"`
	Final    bool      `json:"final"`
	Messages []Message `json:"messages"`
}

func (*Success) isResult() {}

// Failure reports a failed turn. The caller's session is untouched.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
	Cause  error       `json:"-"`
}

func (*Failure) isResult() {}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Fail builds a Failure with a formatted detail.
func Fail(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
