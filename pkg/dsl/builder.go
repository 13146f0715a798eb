package dsl

import (
	"fmt"

	"github.com/creasty/defaults"

	"github.com/aretw0/tick/pkg/domain"
)

// Builder accumulates the parts of a story.
type Builder struct {
	name     string
	contexts []*ContextBuilder
	actions  []*ActionBuilder
	intents  []*IntentBuilder
	unknown  []*UnknownBuilder
	machine  *domain.MachineState
	settings domain.StorySettings
	err      error
}

// New creates a builder for the named story. Settings start from their
// declared defaults.
func New(name string) *Builder {
	b := &Builder{name: name}
	b.err = defaults.Set(&b.settings)
	return b
}

// Context declares a context slot, or returns the existing declaration.
func (b *Builder) Context(name string) *ContextBuilder {
	for _, c := range b.contexts {
		if c.def.Name == name {
			return c
		}
	}
	c := &ContextBuilder{def: domain.ContextDef{Name: name}}
	b.contexts = append(b.contexts, c)
	return c
}

// Action declares an action, or returns the existing declaration.
func (b *Builder) Action(name string) *ActionBuilder {
	for _, a := range b.actions {
		if a.action.Name == name {
			return a
		}
	}
	a := &ActionBuilder{action: domain.Action{Name: name}, builder: b}
	b.actions = append(b.actions, a)
	return a
}

// Intent declares an intent, or returns the existing declaration.
func (b *Builder) Intent(name string) *IntentBuilder {
	for _, i := range b.intents {
		if i.ic.Intent == name {
			return i
		}
	}
	i := &IntentBuilder{ic: domain.IntentContexts{Intent: name}}
	b.intents = append(b.intents, i)
	return i
}

// Unknown adds an unknown-intent policy entry answering answerID.
func (b *Builder) Unknown(answerID string) *UnknownBuilder {
	u := &UnknownBuilder{cfg: domain.UnknownAnswerConfig{AnswerID: answerID}}
	b.unknown = append(b.unknown, u)
	return u
}

// Machine replaces the generated flat state machine.
func (b *Builder) Machine(root *domain.MachineState) *Builder {
	b.machine = root
	return b
}

// UnknownAnswer sets the global unknown answer.
func (b *Builder) UnknownAnswer(answerID string) *Builder {
	b.settings.UnknownAnswerID = answerID
	return b
}

// MaxRetries sets the default retry bound of unknown entries.
func (b *Builder) MaxRetries(n int) *Builder {
	b.settings.MaxRetries = n
	return b
}

// MaxLoops caps action invocations per turn.
func (b *Builder) MaxLoops(n int) *Builder {
	b.settings.MaxLoops = n
	return b
}

// Redirect forces action once a waiting action ends more than n turns in a row.
func (b *Builder) Redirect(action string, n int) *Builder {
	b.settings.RedirectAction = action
	b.settings.RepetitionNb = n
	return b
}

// Debug renders context dumps around every action.
func (b *Builder) Debug() *Builder {
	b.settings.Debug = true
	return b
}

// Build assembles the story. Contexts referenced by actions but never
// declared are declared untyped. The result is not validated.
func (b *Builder) Build() (*domain.Configuration, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to apply settings defaults: %w", b.err)
	}
	if len(b.actions) == 0 {
		return nil, fmt.Errorf("story %q declares no action", b.name)
	}

	cfg := &domain.Configuration{
		Name:     b.name,
		Settings: b.settings,
	}
	for _, c := range b.contexts {
		cfg.Contexts = append(cfg.Contexts, c.def)
	}
	declared := make(map[string]bool, len(cfg.Contexts))
	for _, c := range cfg.Contexts {
		declared[c.Name] = true
	}
	for _, a := range b.actions {
		cfg.Actions = append(cfg.Actions, a.action)
		for _, name := range append(append([]string{}, a.action.InputContexts...), a.action.OutputContexts...) {
			if !declared[name] {
				declared[name] = true
				cfg.Contexts = append(cfg.Contexts, domain.ContextDef{Name: name})
			}
		}
	}
	for _, i := range b.intents {
		cfg.IntentContexts = append(cfg.IntentContexts, i.ic)
	}
	for _, u := range b.unknown {
		cfg.UnknownAnswerConfigs = append(cfg.UnknownAnswerConfigs, u.cfg)
	}

	cfg.StateMachine = b.machine
	if cfg.StateMachine == nil {
		cfg.StateMachine = b.flatMachine()
	}
	cfg.StateMachine.Normalize()
	return cfg, nil
}

func (b *Builder) flatMachine() *domain.MachineState {
	root := &domain.MachineState{
		ID:      "Global",
		Initial: b.actions[0].action.Name,
		States:  make(map[string]*domain.MachineState, len(b.actions)),
	}
	for _, a := range b.actions {
		root.States[a.action.Name] = &domain.MachineState{ID: a.action.Name, On: a.on}
	}
	return root
}

// ContextBuilder configures a context slot.
type ContextBuilder struct {
	def domain.ContextDef
}

// Type sets the schema type of the slot.
func (c *ContextBuilder) Type(typ string) *ContextBuilder {
	c.def.Type = typ
	return c
}

// Entity binds the slot to an entity role.
func (c *ContextBuilder) Entity(role string) *ContextBuilder {
	c.def.EntityRole = role
	return c
}

// ActionBuilder configures an action and its state in the flat machine.
type ActionBuilder struct {
	action  domain.Action
	on      map[string]string
	builder *Builder
}

// Describe sets the action description.
func (a *ActionBuilder) Describe(text string) *ActionBuilder {
	a.action.Description = text
	return a
}

// Handler names the registered handler backing the action.
func (a *ActionBuilder) Handler(name string) *ActionBuilder {
	a.action.Handler = name
	return a
}

// Answer sets the answer rendered before the handler runs.
func (a *ActionBuilder) Answer(answerID string) *ActionBuilder {
	a.action.AnswerID = answerID
	return a
}

// Inputs appends input contexts.
func (a *ActionBuilder) Inputs(names ...string) *ActionBuilder {
	a.action.InputContexts = append(a.action.InputContexts, names...)
	return a
}

// Outputs appends output contexts.
func (a *ActionBuilder) Outputs(names ...string) *ActionBuilder {
	a.action.OutputContexts = append(a.action.OutputContexts, names...)
	return a
}

// Final marks the action as ending the story.
func (a *ActionBuilder) Final() *ActionBuilder {
	a.action.Final = true
	return a
}

// Wait marks the action as asking the user something.
func (a *ActionBuilder) Wait() *ActionBuilder {
	a.action.Wait = true
	return a
}

// Trigger re-enters intent resolution with intent once the action ran.
func (a *ActionBuilder) Trigger(intent string) *ActionBuilder {
	a.action.Trigger = intent
	return a
}

// On adds a transition to the action's state in the flat machine.
func (a *ActionBuilder) On(event, target string) *ActionBuilder {
	if a.on == nil {
		a.on = make(map[string]string)
	}
	a.on[event] = target
	return a
}

// IntentBuilder configures the associations of an intent.
type IntentBuilder struct {
	ic domain.IntentContexts
}

// Goal associates the intent with an action, asserting contexts when the
// association is selected.
func (i *IntentBuilder) Goal(action string, contexts ...string) *IntentBuilder {
	i.ic.Associations = append(i.ic.Associations, domain.Association{Action: action, Contexts: contexts})
	return i
}

// UnknownBuilder configures an unknown-intent policy entry.
type UnknownBuilder struct {
	cfg domain.UnknownAnswerConfig
}

// ForIntent scopes the entry to an intent.
func (u *UnknownBuilder) ForIntent(intent string) *UnknownBuilder {
	u.cfg.Intent = intent
	return u
}

// After scopes the entry to the last executed action.
func (u *UnknownBuilder) After(action string) *UnknownBuilder {
	u.cfg.Action = action
	return u
}

// Retries sets how many times the answer is served before exiting.
func (u *UnknownBuilder) Retries(n int) *UnknownBuilder {
	u.cfg.RetryNb = &n
	return u
}

// Exit sets the action forced once retries are exhausted.
func (u *UnknownBuilder) Exit(action string) *UnknownBuilder {
	u.cfg.ExitAction = action
	return u
}
