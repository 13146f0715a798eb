package domain

import (
	"sort"
	"strings"
)

// StateKind discriminates state machine nodes.
type StateKind string

const (
	// KindAtomic is a plain state. With children it behaves as a compound
	// state where exactly one child is active at a time.
	KindAtomic StateKind = "atomic"
	// KindParallel keeps one active child per region; every child is a region.
	KindParallel StateKind = "parallel"
)

// UnknownIntent is the intent name the recognizer emits when nothing matched.
const UnknownIntent = "unknown"

// MachineState is a node of the story state machine.
type MachineState struct {
	ID      string                   `json:"id" yaml:"id" mapstructure:"id"`
	Kind    StateKind                `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Initial string                   `json:"initial,omitempty" yaml:"initial,omitempty" mapstructure:"initial"`
	States  map[string]*MachineState `json:"states,omitempty" yaml:"states,omitempty" mapstructure:"states"`

	// On maps an event (intent, trigger or action name) to a target state id.
	// Targets may be written "#id" or "id".
	On map[string]string `json:"on,omitempty" yaml:"on,omitempty" mapstructure:"on"`

	// Targets lists the leaves that settle this state when it is a region
	// of a parallel state. A region without targets is not required.
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty" mapstructure:"targets"`
}

// IsParallel reports whether the state is a parallel composite.
func (s *MachineState) IsParallel() bool {
	return s != nil && s.Kind == KindParallel
}

// IsLeaf reports whether the state has no children.
func (s *MachineState) IsLeaf() bool {
	return s != nil && len(s.States) == 0
}

// ChildIDs returns the child ids sorted, so traversals never depend on map order.
func (s *MachineState) ChildIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.States))
	for id := range s.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Events returns the transition keys sorted.
func (s *MachineState) Events() []string {
	if s == nil {
		return nil
	}
	events := make([]string, 0, len(s.On))
	for ev := range s.On {
		events = append(events, ev)
	}
	sort.Strings(events)
	return events
}

// Normalize fills missing child ids from their map keys and defaults kinds.
func (s *MachineState) Normalize() {
	if s == nil {
		return
	}
	if s.Kind == "" {
		s.Kind = KindAtomic
	}
	for id, child := range s.States {
		if child == nil {
			child = &MachineState{}
			s.States[id] = child
		}
		if child.ID == "" {
			child.ID = id
		}
		child.Normalize()
	}
}

// TargetID strips the "#" prefix used by authoring tools.
func TargetID(target string) string {
	return strings.TrimPrefix(target, "#")
}

// ContextDef declares a context slot.
type ContextDef struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// Type is a schema type name ("string", "int", "[string]", ...). Empty means any.
	Type string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	// EntityRole binds the slot to a recognized entity role.
	EntityRole string `json:"entityRole,omitempty" yaml:"entityRole,omitempty" mapstructure:"entityRole"`
}

// Action is a named unit of business logic backed by an external handler.
type Action struct {
	Name           string   `json:"name" yaml:"name" mapstructure:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Handler        string   `json:"handler,omitempty" yaml:"handler,omitempty" mapstructure:"handler"`
	AnswerID       string   `json:"answerId,omitempty" yaml:"answerId,omitempty" mapstructure:"answerId"`
	InputContexts  []string `json:"inputContexts,omitempty" yaml:"inputContexts,omitempty" mapstructure:"inputContexts"`
	OutputContexts []string `json:"outputContexts,omitempty" yaml:"outputContexts,omitempty" mapstructure:"outputContexts"`
	Final          bool     `json:"final,omitempty" yaml:"final,omitempty" mapstructure:"final"`
	Trigger        string   `json:"trigger,omitempty" yaml:"trigger,omitempty" mapstructure:"trigger"`

	// Wait marks an action that asks the user something. Once executed it
	// ends the turn unless it was the goal itself.
	Wait bool `json:"wait,omitempty" yaml:"wait,omitempty" mapstructure:"wait"`
}

// Produces reports whether the action declares the context as output.
func (a *Action) Produces(name string) bool {
	for _, out := range a.OutputContexts {
		if out == name {
			return true
		}
	}
	return false
}

// Association binds an intent to a goal action. Contexts are asserted by the
// intent itself when the association is selected.
type Association struct {
	Action   string   `json:"action" yaml:"action" mapstructure:"action"`
	Contexts []string `json:"contexts,omitempty" yaml:"contexts,omitempty" mapstructure:"contexts"`
}

// IntentContexts lists the associations of one intent, in declaration order.
type IntentContexts struct {
	Intent       string        `json:"intent" yaml:"intent" mapstructure:"intent"`
	Associations []Association `json:"associations" yaml:"associations" mapstructure:"associations"`
}

// UnknownAnswerConfig is one entry of the unknown-intent policy.
// Empty Intent or Action widen the entry's scope.
type UnknownAnswerConfig struct {
	Intent     string `json:"intent,omitempty" yaml:"intent,omitempty" mapstructure:"intent"`
	Action     string `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	AnswerID   string `json:"answerId" yaml:"answerId" mapstructure:"answerId"`
	RetryNb    *int   `json:"retryNb,omitempty" yaml:"retryNb,omitempty" mapstructure:"retryNb"`
	ExitAction string `json:"exitAction,omitempty" yaml:"exitAction,omitempty" mapstructure:"exitAction"`
}

// StorySettings bounds the engine's loops and retries.
type StorySettings struct {
	// MaxLoops caps action invocations per turn. Zero means |actions|+1.
	MaxLoops int `json:"maxLoops,omitempty" yaml:"maxLoops,omitempty" mapstructure:"maxLoops" validate:"gte=0"`
	// MaxRetries is the retry bound of unknown entries without retryNb.
	MaxRetries int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty" mapstructure:"maxRetries" default:"2" validate:"gte=0,lte=100"`
	// RepetitionNb is how many consecutive turns may end on the same waiting action.
	RepetitionNb int `json:"repetitionNb,omitempty" yaml:"repetitionNb,omitempty" mapstructure:"repetitionNb" default:"2" validate:"gte=0,lte=100"`
	// RedirectAction is forced when RepetitionNb is exceeded.
	RedirectAction string `json:"redirectAction,omitempty" yaml:"redirectAction,omitempty" mapstructure:"redirectAction"`
	// UnknownAnswerID is the global default answer for unmatched intents.
	UnknownAnswerID string `json:"unknownAnswerId,omitempty" yaml:"unknownAnswerId,omitempty" mapstructure:"unknownAnswerId"`
	Debug           bool   `json:"debug,omitempty" yaml:"debug,omitempty" mapstructure:"debug"`
}

// Configuration is one story. It is built once, validated and then shared
// read-only by every session of the story.
type Configuration struct {
	Name                 string                `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	StateMachine         *MachineState         `json:"stateMachine" yaml:"stateMachine" mapstructure:"stateMachine"`
	Contexts             []ContextDef          `json:"contexts,omitempty" yaml:"contexts,omitempty" mapstructure:"contexts"`
	Actions              []Action              `json:"actions" yaml:"actions" mapstructure:"actions"`
	IntentContexts       []IntentContexts      `json:"intentContexts,omitempty" yaml:"intentContexts,omitempty" mapstructure:"intentContexts"`
	UnknownAnswerConfigs []UnknownAnswerConfig `json:"unknownAnswerConfigs,omitempty" yaml:"unknownAnswerConfigs,omitempty" mapstructure:"unknownAnswerConfigs"`
	Settings             StorySettings         `json:"storySettings" yaml:"storySettings" mapstructure:"storySettings"`
}

// Action returns the action declared with the given name.
func (c *Configuration) Action(name string) (*Action, bool) {
	for i := range c.Actions {
		if c.Actions[i].Name == name {
			return &c.Actions[i], true
		}
	}
	return nil, false
}

// ActionIndex returns the declaration position of an action, or -1.
func (c *Configuration) ActionIndex(name string) int {
	for i := range c.Actions {
		if c.Actions[i].Name == name {
			return i
		}
	}
	return -1
}

// Context returns the declared context slot with the given name.
func (c *Configuration) Context(name string) (*ContextDef, bool) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], true
		}
	}
	return nil, false
}

// Associations returns the associations of an intent, nil when absent.
func (c *Configuration) Associations(intent string) []Association {
	for _, ic := range c.IntentContexts {
		if ic.Intent == intent {
			return ic.Associations
		}
	}
	return nil
}

// MaxInvocations is the per-turn invocation bound.
func (c *Configuration) MaxInvocations() int {
	if c.Settings.MaxLoops > 0 {
		return c.Settings.MaxLoops
	}
	return len(c.Actions) + 1
}
