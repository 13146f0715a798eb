// Package validator statically checks a story before it may serve traffic.
package validator

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/aretw0/tick/internal/planner"
	"github.com/aretw0/tick/internal/statemachine"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/schema"
)

var settingsValidate = newSettingsValidate()

func newSettingsValidate() *playground.Validate {
	v := playground.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HandlerSet reports which handler names are registered.
type HandlerSet interface {
	Has(name string) bool
}

// Option configures a validation run.
type Option func(*checker)

// WithHandlers also checks that every referenced handler is registered.
func WithHandlers(h HandlerSet) Option {
	return func(c *checker) {
		c.handlers = h
	}
}

// Validate returns every structural error of the story, in a stable order.
// An empty result is the only acceptable precondition for serving.
func Validate(cfg *domain.Configuration, opts ...Option) []domain.StructuralError {
	c := &checker{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if cfg == nil {
		c.add(domain.CodeInvalidStructure, "", "story is empty")
		return c.errs
	}

	c.checkSettings()
	c.checkContexts()
	c.checkActions()
	c.checkStates()
	c.checkIntents()
	c.checkUnknownPolicy()
	c.checkSatisfiability()
	return c.errs
}

type checker struct {
	cfg      *domain.Configuration
	handlers HandlerSet
	machine  *statemachine.Machine
	contexts map[string]bool
	actions  map[string]bool
	states   map[string]bool
	dupState bool
	errs     []domain.StructuralError
}

func (c *checker) add(code, path, format string, args ...any) {
	c.errs = append(c.errs, domain.StructuralError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) checkSettings() {
	err := settingsValidate.Struct(c.cfg.Settings)
	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			c.add(domain.CodeInvalidSettings, "storySettings."+fe.Field(),
				"value %v fails rule %q", fe.Value(), fe.Tag())
		}
	}
	if r := c.cfg.Settings.RedirectAction; r != "" {
		if _, ok := c.cfg.Action(r); !ok {
			c.add(domain.CodeUnknownAction, "storySettings.redirectAction", "action %q is not declared", r)
		}
	}
}

func (c *checker) checkContexts() {
	c.contexts = make(map[string]bool)
	for i, def := range c.cfg.Contexts {
		path := fmt.Sprintf("contexts[%d]", i)
		if def.Name == "" {
			c.add(domain.CodeInvalidStructure, path, "context without a name")
			continue
		}
		if c.contexts[def.Name] {
			c.add(domain.CodeDuplicate, path, "context %q is declared twice", def.Name)
		}
		c.contexts[def.Name] = true
		if _, err := schema.ParseType(def.Type); err != nil {
			c.add(domain.CodeInvalidType, path+".type", "%v", err)
		}
	}
}

func (c *checker) checkActions() {
	c.actions = make(map[string]bool)
	for i, a := range c.cfg.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		if a.Name == "" {
			c.add(domain.CodeInvalidStructure, path, "action without a name")
			continue
		}
		if c.actions[a.Name] {
			c.add(domain.CodeDuplicate, path, "action %q is declared twice", a.Name)
		}
		c.actions[a.Name] = true

		if c.contexts[a.Name] {
			c.add(domain.CodeNameConflict, path, "%q names both a context and an action", a.Name)
		}
		for j, in := range a.InputContexts {
			if !c.contexts[in] {
				c.add(domain.CodeUndeclared, fmt.Sprintf("%s.inputContexts[%d]", path, j), "context %q is not declared", in)
			}
		}
		for j, out := range a.OutputContexts {
			if !c.contexts[out] {
				c.add(domain.CodeUndeclared, fmt.Sprintf("%s.outputContexts[%d]", path, j), "context %q is not declared", out)
			}
		}
		if a.Handler != "" && c.handlers != nil && !c.handlers.Has(a.Handler) {
			c.add(domain.CodeUnknownHandler, path+".handler", "handler %q is not registered", a.Handler)
		}
	}
}

func (c *checker) checkStates() {
	root := c.cfg.StateMachine
	if root == nil {
		c.add(domain.CodeMissingInitial, "stateMachine", "story has no state machine")
		return
	}

	c.states = make(map[string]bool)
	rootID := root.ID
	if rootID == "" {
		rootID = "Global"
	}
	c.checkState("stateMachine", rootID, root)

	m, err := statemachine.New(root)
	if err != nil {
		if !c.dupState {
			c.add(domain.CodeInvalidStructure, "stateMachine", "%v", err)
		}
		return
	}
	c.machine = m

	for _, tr := range m.Transitions() {
		path := fmt.Sprintf("states.%s.on.%s", tr.From, tr.Event)
		if !m.Has(tr.To) {
			c.add(domain.CodeUnknownState, path, "target %q does not exist", tr.To)
		} else if tr.To == tr.From {
			c.add(domain.CodeSelfLoop, path, "state %q transitions to itself", tr.From)
		}
	}

	for _, id := range m.IDs() {
		node, _ := m.Node(id)
		for j, target := range node.Targets {
			t := domain.TargetID(target)
			if !m.Has(t) || !m.Contains(id, t) {
				c.add(domain.CodeUnknownState, fmt.Sprintf("states.%s.targets[%d]", id, j), "target %q is not inside region %q", t, id)
			}
		}
	}

	for _, leaf := range m.Leaves() {
		if !c.actions[leaf] {
			c.add(domain.CodeStateWithoutAct, "states."+leaf, "leaf state %q has no action", leaf)
		}
	}
	for i, a := range c.cfg.Actions {
		if a.Name != "" && !m.Has(a.Name) {
			c.add(domain.CodeActionNoState, fmt.Sprintf("actions[%d]", i), "action %q has no state", a.Name)
		}
	}
}

// checkState walks the raw tree; the indexed machine cannot report what it
// refused to build.
func (c *checker) checkState(path, id string, node *domain.MachineState) {
	if c.states[id] {
		c.dupState = true
		c.add(domain.CodeDuplicate, path, "state %q is declared twice", id)
	}
	c.states[id] = true
	if node == nil {
		return
	}
	if node.Kind != "" && node.Kind != domain.KindAtomic && node.Kind != domain.KindParallel {
		c.add(domain.CodeInvalidStructure, path+".type", "unknown state type %q", node.Kind)
	}
	if len(node.States) > 0 && !node.IsParallel() {
		if node.Initial == "" {
			c.add(domain.CodeMissingInitial, path, "compound state %q has no initial child", id)
		} else if _, ok := node.States[domain.TargetID(node.Initial)]; !ok {
			c.add(domain.CodeMissingInitial, path+".initial", "initial %q is not a child of %q", node.Initial, id)
		}
	}
	for _, childID := range node.ChildIDs() {
		c.checkState(path+".states."+childID, childID, node.States[childID])
	}
}

// knownIntent reports whether an intent is served by an association or a
// transition somewhere in the machine.
func (c *checker) knownIntent(intent string) bool {
	if intent == domain.UnknownIntent || len(c.cfg.Associations(intent)) > 0 {
		return true
	}
	return c.machine != nil && c.machine.HasEvent(intent)
}

func (c *checker) checkIntents() {
	seen := make(map[string]bool)
	for i, ic := range c.cfg.IntentContexts {
		path := fmt.Sprintf("intentContexts[%d]", i)
		if seen[ic.Intent] {
			c.add(domain.CodeDuplicate, path, "intent %q is declared twice", ic.Intent)
		}
		seen[ic.Intent] = true
		for j, assoc := range ic.Associations {
			apath := fmt.Sprintf("%s.associations[%d]", path, j)
			if !c.actions[assoc.Action] {
				c.add(domain.CodeUnknownAction, apath, "action %q is not declared", assoc.Action)
			}
			for _, name := range assoc.Contexts {
				if !c.contexts[name] {
					c.add(domain.CodeUndeclared, apath+".contexts", "context %q is not declared", name)
				}
			}
		}
	}
	for i, a := range c.cfg.Actions {
		if a.Trigger != "" && !c.knownIntent(a.Trigger) {
			c.add(domain.CodeUnknownIntent, fmt.Sprintf("actions[%d].trigger", i), "trigger %q matches no intent or transition", a.Trigger)
		}
	}
}

func (c *checker) checkUnknownPolicy() {
	for i, e := range c.cfg.UnknownAnswerConfigs {
		path := fmt.Sprintf("unknownAnswerConfigs[%d]", i)
		if e.AnswerID == "" {
			c.add(domain.CodeInvalidStructure, path+".answerId", "entry has no answer")
		}
		if e.Action != "" && !c.actions[e.Action] {
			c.add(domain.CodeUnknownAction, path+".action", "action %q is not declared", e.Action)
		}
		if e.ExitAction != "" && !c.actions[e.ExitAction] {
			c.add(domain.CodeUnknownAction, path+".exitAction", "action %q is not declared", e.ExitAction)
		}
		if e.RetryNb != nil && *e.RetryNb < 0 {
			c.add(domain.CodeInvalidSettings, path+".retryNb", "retryNb must not be negative")
		}
		if e.Intent != "" && e.Intent != domain.UnknownIntent && !c.knownIntent(e.Intent) {
			c.add(domain.CodeUnknownIntent, path+".intent", "intent %q is not used by the story", e.Intent)
		}
	}
}

// checkSatisfiability proves that every goal the engine may push has a chain
// of actions able to produce its inputs from what the user can supply: entity
// bound contexts plus, for associations, the association's own contexts.
// Exit and redirect actions are goals too.
func (c *checker) checkSatisfiability() {
	supplied := make(map[string]bool)
	for _, def := range c.cfg.Contexts {
		if def.EntityRole != "" {
			supplied[def.Name] = true
		}
	}

	p := planner.New(c.cfg, c.machine)
	for i, ic := range c.cfg.IntentContexts {
		for j, assoc := range ic.Associations {
			if !c.actions[assoc.Action] {
				continue
			}
			have := maps.Clone(supplied)
			for _, name := range assoc.Contexts {
				have[name] = true
			}
			if _, missing := p.Chain(assoc.Action, have, nil); len(missing) > 0 {
				c.add(domain.CodeUnsatisfiable, fmt.Sprintf("intentContexts[%d].associations[%d]", i, j),
					"intent %q cannot reach %q: nothing produces [%s]", ic.Intent, assoc.Action, strings.Join(missing, ", "))
			}
		}
	}

	reach := func(path, goal string) {
		if goal == "" || !c.actions[goal] {
			return
		}
		if _, missing := p.Chain(goal, maps.Clone(supplied), nil); len(missing) > 0 {
			c.add(domain.CodeUnsatisfiable, path,
				"action %q cannot be reached: nothing produces [%s]", goal, strings.Join(missing, ", "))
		}
	}
	for i, e := range c.cfg.UnknownAnswerConfigs {
		reach(fmt.Sprintf("unknownAnswerConfigs[%d].exitAction", i), e.ExitAction)
	}
	reach("storySettings.redirectAction", c.cfg.Settings.RedirectAction)
}
