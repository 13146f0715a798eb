package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart    EventType = "turn_start"
	EventTurnEnd      EventType = "turn_end"
	EventActionInvoke EventType = "action_invoke"
	EventActionReturn EventType = "action_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Story     string    `json:"story,omitempty"`
}

// TurnEvent represents the start or end of a turn.
type TurnEvent struct {
	EventBase
	Intent string `json:"intent"`
	State  string `json:"state"`

	// Outcome is set on turn end: "success", "final" or a FailureKind.
	Outcome     string `json:"outcome,omitempty"`
	Invocations int    `json:"invocations,omitempty"`
}

// ActionEvent represents an action execution.
type ActionEvent struct {
	EventBase
	Action   string         `json:"action"`
	Handler  string         `json:"handler,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart    func(context.Context, *TurnEvent)
	OnTurnEnd      func(context.Context, *TurnEvent)
	OnActionInvoke func(context.Context, *ActionEvent)
	OnActionReturn func(context.Context, *ActionEvent)
}
