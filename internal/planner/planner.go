// Package planner decides which actions a turn has to run.
//
// An intent names candidate goals: the target of a transition reachable
// from the current state and the actions associated with the intent. Goals
// are tried closest first (tree distance from the current state), then in
// declaration order. For a goal, the planner looks for helper actions whose
// outputs cover the goal's missing inputs, recursively, and returns the
// chain in execution order.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tick/internal/statemachine"
	"github.com/aretw0/tick/pkg/domain"
)

// Candidate is one way of serving an intent.
type Candidate struct {
	// Objective is the state pushed on the objectives stack.
	Objective string
	// Goal is the action that reaches the objective.
	Goal string
	// Contexts are asserted by the intent when this candidate is selected.
	Contexts []string
}

// Plan is the outcome of a successful resolution.
type Plan struct {
	Candidate
	// Chain lists the actions to run, the goal last.
	Chain []string
}

// UnsatisfiableError lists, per candidate goal, the contexts no chain could provide.
type UnsatisfiableError struct {
	Intent  string
	Missing map[string][]string
}

func (e *UnsatisfiableError) Error() string {
	goals := make([]string, 0, len(e.Missing))
	for goal := range e.Missing {
		goals = append(goals, goal)
	}
	sort.Strings(goals)
	parts := make([]string, 0, len(goals))
	for _, goal := range goals {
		parts = append(parts, fmt.Sprintf("%s needs [%s]", goal, strings.Join(e.Missing[goal], ", ")))
	}
	return fmt.Sprintf("no satisfiable goal for intent %q: %s", e.Intent, strings.Join(parts, "; "))
}

// Exclude decides whether an action may not serve as a helper.
type Exclude func(a *domain.Action) bool

// Planner is built once per story and is safe for concurrent use.
type Planner struct {
	cfg     *domain.Configuration
	machine *statemachine.Machine
	entries map[string]bool
}

// New creates a planner for a validated story.
func New(cfg *domain.Configuration, machine *statemachine.Machine) *Planner {
	entries := make(map[string]bool)
	for _, ic := range cfg.IntentContexts {
		for _, assoc := range ic.Associations {
			entries[assoc.Action] = true
		}
	}
	return &Planner{cfg: cfg, machine: machine, entries: entries}
}

// Known reports whether the intent can be served from the position: it has
// associations or a reachable transition.
func (p *Planner) Known(pos statemachine.Position, intent string) bool {
	if len(p.cfg.Associations(intent)) > 0 {
		return true
	}
	_, ok := p.machine.Lookup(pos, intent)
	return ok
}

// Candidates returns the goals of an intent in the order they are tried.
func (p *Planner) Candidates(pos statemachine.Position, intent string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	if target, ok := p.machine.Lookup(pos, intent); ok {
		out = append(out, Candidate{Objective: target, Goal: p.GoalOf(pos, target)})
		seen[target] = true
	}
	for _, assoc := range p.cfg.Associations(intent) {
		if seen[assoc.Action] {
			continue
		}
		seen[assoc.Action] = true
		out = append(out, Candidate{Objective: assoc.Action, Goal: assoc.Action, Contexts: assoc.Contexts})
	}

	sort.SliceStable(out, func(i, j int) bool {
		di := p.machine.Distance(pos.Current, out[i].Objective)
		dj := p.machine.Distance(pos.Current, out[j].Objective)
		if di != dj {
			return di < dj
		}
		return p.order(out[i].Goal) < p.order(out[j].Goal)
	})
	return out
}

// GoalOf returns the action that makes progress towards an objective state.
// For a parallel state it is the first pending region target; for a compound
// state it is the initial leaf. It is empty when a parallel objective is
// already settled.
func (p *Planner) GoalOf(pos statemachine.Position, objective string) string {
	node, ok := p.machine.Node(objective)
	if !ok {
		return objective
	}
	if node.IsParallel() {
		target, _ := p.machine.Pending(pos, objective)
		return target
	}
	if node.IsLeaf() {
		return domain.TargetID(objective)
	}
	entered := p.machine.Enter(pos, objective)
	if n, _ := p.machine.Node(entered.Current); n.IsParallel() {
		target, _ := p.machine.Pending(entered, entered.Current)
		return target
	}
	return entered.Current
}

// Resolve selects the first candidate of the intent with a satisfiable
// chain. have reports the contexts already set. A plan with no goal targets
// a parallel state with nothing pending: entering it settles it.
func (p *Planner) Resolve(pos statemachine.Position, intent string, have map[string]bool, exclude Exclude) (*Plan, error) {
	candidates := p.Candidates(pos, intent)
	unsat := &UnsatisfiableError{Intent: intent, Missing: make(map[string][]string)}
	for _, c := range candidates {
		if c.Goal == "" {
			if p.machine.Has(c.Objective) {
				return &Plan{Candidate: c}, nil
			}
			continue
		}
		avail := make(map[string]bool, len(have)+len(c.Contexts))
		for k, v := range have {
			avail[k] = v
		}
		for _, name := range c.Contexts {
			avail[name] = true
		}
		chain, missing := p.Chain(c.Goal, avail, exclude)
		if len(missing) == 0 {
			return &Plan{Candidate: c, Chain: chain}, nil
		}
		unsat.Missing[c.Goal] = missing
	}
	return nil, unsat
}

// RuntimeExclusion is the helper pool rule of a live turn: actions that
// already ran this turn, intent entry actions and final actions never run as
// helpers.
func (p *Planner) RuntimeExclusion(ran func(string) bool) Exclude {
	return func(a *domain.Action) bool {
		return ran(a.Name) || p.entries[a.Name] || a.Final
	}
}

// Chain computes the actions to run before goal, in execution order,
// followed by goal. It returns the goal inputs nothing could provide.
func (p *Planner) Chain(goal string, have map[string]bool, exclude Exclude) ([]string, []string) {
	action, ok := p.cfg.Action(goal)
	if !ok {
		return nil, []string{"action " + goal}
	}

	s := &search{
		p:        p,
		goal:     goal,
		exclude:  exclude,
		provided: make(map[string]bool, len(have)),
		visiting: map[string]bool{goal: true},
	}
	for k, v := range have {
		if v {
			s.provided[k] = true
		}
	}

	var missing []string
	for _, in := range action.InputContexts {
		if !s.satisfy(in, 0) {
			missing = append(missing, in)
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}

	chain := append(s.chain, goal)
	if err := p.verify(chain, have); err != nil {
		return nil, []string{err.Error()}
	}
	return chain, nil
}

// verify replays the chain forward and checks every action's inputs.
func (p *Planner) verify(chain []string, have map[string]bool) error {
	provided := make(map[string]bool, len(have))
	for k, v := range have {
		provided[k] = v
	}
	for _, name := range chain {
		a, _ := p.cfg.Action(name)
		for _, in := range a.InputContexts {
			if !provided[in] {
				return fmt.Errorf("%s runs before %s is set", name, in)
			}
		}
		for _, out := range a.OutputContexts {
			provided[out] = true
		}
	}
	return nil
}

func (p *Planner) order(action string) int {
	if i := p.cfg.ActionIndex(action); i >= 0 {
		return i
	}
	return len(p.cfg.Actions)
}

type search struct {
	p        *Planner
	goal     string
	exclude  Exclude
	provided map[string]bool
	visiting map[string]bool
	chain    []string
}

func (s *search) satisfy(ctx string, depth int) bool {
	if s.provided[ctx] {
		return true
	}
	if depth > len(s.p.cfg.Actions) {
		return false
	}
	for i := range s.p.cfg.Actions {
		a := &s.p.cfg.Actions[i]
		if !a.Produces(ctx) || s.visiting[a.Name] || s.inChain(a.Name) {
			continue
		}
		if s.exclude != nil && s.exclude(a) {
			continue
		}

		mark := len(s.chain)
		saved := make(map[string]bool, len(s.provided))
		for k, v := range s.provided {
			saved[k] = v
		}

		s.visiting[a.Name] = true
		ok := true
		for _, in := range a.InputContexts {
			if !s.satisfy(in, depth+1) {
				ok = false
				break
			}
		}
		delete(s.visiting, a.Name)

		if ok {
			s.chain = append(s.chain, a.Name)
			for _, out := range a.OutputContexts {
				s.provided[out] = true
			}
			return true
		}
		s.chain = s.chain[:mark]
		s.provided = saved
	}
	return false
}

func (s *search) inChain(name string) bool {
	for _, n := range s.chain {
		if n == name {
			return true
		}
	}
	return false
}
