package domain

import (
	"maps"
	"slices"
)

// Repetition counts consecutive turns that ended on the same waiting action.
type Repetition struct {
	Action string `json:"action,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Session is the per-conversation state the engine reads and writes each turn.
// It is a plain serializable value; the engine never mutates a session it
// was given and returns a new one on success.
type Session struct {
	// CurrentState is the most recently entered state id.
	CurrentState string `json:"current_state"`

	// Regions maps each active parallel region id to its current leaf.
	Regions map[string]string `json:"regions,omitempty"`

	// ObjectivesStack holds targets not yet reached, bottom first.
	ObjectivesStack []string `json:"objectives_stack,omitempty"`

	// RanHandlers is the per-turn loop guard, cleared at the start of each turn.
	RanHandlers []string `json:"ran_handlers,omitempty"`

	// Contexts accumulates context values across the whole dialog.
	Contexts map[string]any `json:"contexts"`

	RetryCounters map[string]int `json:"retry_counters,omitempty"`

	// LastAction is the last executed action, across turns. It scopes the
	// unknown-intent policy.
	LastAction string `json:"last_action,omitempty"`

	Repetition Repetition `json:"repetition,omitempty"`
}

// NewSession creates a clean session positioned at the given state.
func NewSession(initialState string) *Session {
	return &Session{
		CurrentState:  initialState,
		Regions:       make(map[string]string),
		Contexts:      make(map[string]any),
		RetryCounters: make(map[string]int),
	}
}

// Clone returns a deep copy of the session containers. Context values are
// copied by reference.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.Regions = maps.Clone(s.Regions)
	next.Contexts = maps.Clone(s.Contexts)
	next.RetryCounters = maps.Clone(s.RetryCounters)
	next.ObjectivesStack = slices.Clone(s.ObjectivesStack)
	next.RanHandlers = slices.Clone(s.RanHandlers)
	return &next
}

// HasRun reports whether the action already ran in the current turn.
func (s *Session) HasRun(action string) bool {
	return slices.Contains(s.RanHandlers, action)
}

// Top returns the objective on top of the stack.
func (s *Session) Top() (string, bool) {
	if len(s.ObjectivesStack) == 0 {
		return "", false
	}
	return s.ObjectivesStack[len(s.ObjectivesStack)-1], true
}

// PushObjective pushes the target unless it is already on top.
func (s *Session) PushObjective(target string) {
	if top, ok := s.Top(); ok && top == target {
		return
	}
	s.ObjectivesStack = append(s.ObjectivesStack, target)
}

// PopObjective removes the objective on top of the stack.
func (s *Session) PopObjective() {
	if len(s.ObjectivesStack) > 0 {
		s.ObjectivesStack = s.ObjectivesStack[:len(s.ObjectivesStack)-1]
	}
}

// UserAction is the recognized input of one turn.
type UserAction struct {
	Intent   string         `json:"intent" yaml:"intent" mapstructure:"intent"`
	Entities map[string]any `json:"entities,omitempty" yaml:"entities,omitempty" mapstructure:"entities"`
}

// Message is one rendered output. AnswerID references an answer authored
// outside the engine; Text is used for plain and debug messages.
type Message struct {
	AnswerID string `json:"answer_id,omitempty" yaml:"answer_id,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
}
