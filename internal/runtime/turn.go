package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tick/internal/statemachine"
	"github.com/aretw0/tick/pkg/contexts"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/sender"
)

// turn is the working state of one Process call. It owns a clone of the
// caller's session; nothing leaks back unless the turn succeeds.
type turn struct {
	e      *Engine
	ctx    context.Context
	action domain.UserAction

	s     *domain.Session
	store contexts.Store
	pos   statemachine.Position
	out   *sender.Buffer

	snap  contexts.Snapshot
	start statemachine.Position

	invocations int
	steps       int
	// answered is set when the unknown policy replied in place.
	answered bool
}

func (e *Engine) newTurn(ctx context.Context, in *domain.Session, action domain.UserAction) *turn {
	s := in.Clone()
	s.RanHandlers = nil
	if s.RetryCounters == nil {
		s.RetryCounters = make(map[string]int)
	}

	pos := statemachine.PositionOf(s)
	if !e.machine.Has(pos.Current) {
		pos = e.machine.Initial()
	}

	store := contexts.New(s.Contexts)
	return &turn{
		e:      e,
		ctx:    ctx,
		action: action,
		s:      s,
		store:  store,
		pos:    pos,
		out:    sender.NewBuffer(),
		snap:   store.Snapshot(),
		start:  pos,
	}
}

func (t *turn) run() domain.Result {
	res := t.process()
	if _, failed := res.(*domain.Failure); failed {
		t.rollback()
	}
	return res
}

// rollback puts the turn back on its pre-turn contexts and position and
// drops every message produced so far.
func (t *turn) rollback() {
	t.store = contexts.Restore(t.snap)
	t.pos = t.start
	t.out.Reset()
}

func (t *turn) process() domain.Result {
	bound := t.bindEntities()

	// a reply that only fills slots resumes the pending objectives
	if bound > 0 && len(t.s.ObjectivesStack) > 0 && !t.servable(t.action.Intent) {
		t.e.logger.DebugContext(t.ctx, "resuming objectives", "intent", t.action.Intent, "entities", bound)
		return t.loop()
	}

	if f := t.resolve(t.action.Intent, true); f != nil {
		return f
	}
	if t.answered {
		return t.success()
	}
	return t.loop()
}

// bindEntities writes entity values into the contexts that declare their
// role and returns how many were bound.
func (t *turn) bindEntities() int {
	if len(t.action.Entities) == 0 {
		return 0
	}
	bound := make(map[string]any)
	for _, def := range t.e.cfg.Contexts {
		if def.EntityRole == "" {
			continue
		}
		v, ok := t.action.Entities[def.EntityRole]
		if !ok {
			continue
		}
		if typ, ok := t.e.schema[def.Name]; ok {
			if err := typ.Validate(v); err != nil {
				t.e.logger.WarnContext(t.ctx, "entity ignored", "role", def.EntityRole, "context", def.Name, "err", err)
				continue
			}
		}
		bound[def.Name] = v
	}
	t.store = t.store.Merge(bound)
	return len(bound)
}

func (t *turn) servable(intent string) bool {
	return !t.e.policy.Claims(intent) && t.e.planner.Known(t.pos, intent)
}

// resolve turns an intent into an objective. fromUser distinguishes the
// recognized intent from a trigger fired inside the turn.
func (t *turn) resolve(intent string, fromUser bool) *domain.Failure {
	if !t.servable(intent) {
		if !fromUser {
			return domain.Fail(domain.ConfigurationError, "trigger %q matches no intent", intent)
		}
		return t.handleUnknown(intent)
	}

	plan, err := t.e.planner.Resolve(t.pos, intent, t.have(), t.e.planner.RuntimeExclusion(t.s.HasRun))
	if err != nil {
		return &domain.Failure{Kind: domain.ConfigurationError, Detail: fmt.Sprintf("intent %q cannot be served", intent), Cause: err}
	}
	if !fromUser && t.s.HasRun(plan.Goal) {
		return domain.Fail(domain.CycleDetected, "trigger %q re-enters %q", intent, plan.Goal)
	}

	if plan.Goal == "" {
		if !t.e.machine.Reached(t.pos, plan.Objective) {
			t.pos = t.e.machine.Enter(t.pos, plan.Objective)
		}
		if fromUser {
			clear(t.s.RetryCounters)
		}
		t.e.logger.DebugContext(t.ctx, "intent entered settled state", "intent", intent, "state", plan.Objective)
		return nil
	}

	asserted := make(map[string]any)
	for _, name := range plan.Contexts {
		if !t.store.Has(name) {
			asserted[name] = true
		}
	}
	t.store = t.store.Merge(asserted)
	t.s.PushObjective(plan.Objective)
	if fromUser {
		clear(t.s.RetryCounters)
	}

	t.e.logger.DebugContext(t.ctx, "intent resolved", "intent", intent, "objective", plan.Objective, "chain", plan.Chain)
	return nil
}

func (t *turn) handleUnknown(intent string) *domain.Failure {
	d, ok := t.e.policy.Handle(t.s.RetryCounters, t.s.LastAction, intent)
	if !ok {
		return domain.Fail(domain.UnresolvedIntent, "no answer covers intent %q after %q", intent, t.s.LastAction)
	}
	t.e.logger.DebugContext(t.ctx, "unknown intent", "intent", intent, "key", d.Key, "count", d.Count, "exit", d.ExitAction)

	if d.Exit() {
		t.s.ObjectivesStack = nil
		t.s.PushObjective(d.ExitAction)
		return nil
	}
	t.out.Send(sender.Answer(d.AnswerID))
	t.answered = true
	return nil
}

// loop runs actions until the objectives stack empties, a waiting action
// hands the turn back to the user or a final action ends the story.
func (t *turn) loop() domain.Result {
	bound := t.e.cfg.MaxInvocations()
	for {
		t.steps++
		if t.steps > 4*(bound+1) {
			return domain.Fail(domain.CycleDetected, "turn did not settle after %d steps", t.steps-1)
		}

		objective, ok := t.s.Top()
		if !ok {
			t.s.Repetition = domain.Repetition{}
			return t.success()
		}
		goal := t.e.planner.GoalOf(t.pos, objective)
		if goal == "" || t.s.HasRun(goal) {
			t.s.PopObjective()
			continue
		}

		chain, missing := t.e.planner.Chain(goal, t.have(), t.e.planner.RuntimeExclusion(t.s.HasRun))
		if len(missing) > 0 {
			return domain.Fail(domain.ConfigurationError, "goal %q of objective %q needs [%s]", goal, objective, strings.Join(missing, ", "))
		}
		name := chain[0]
		action, _ := t.e.cfg.Action(name)

		if action.Wait && name != goal && t.repeats(name) {
			t.s.Repetition = domain.Repetition{}
			t.s.ObjectivesStack = nil
			t.s.PushObjective(t.e.cfg.Settings.RedirectAction)
			t.e.logger.DebugContext(t.ctx, "repetition redirect", "action", name, "redirect", t.e.cfg.Settings.RedirectAction)
			continue
		}

		if t.invocations >= bound {
			return domain.Fail(domain.CycleDetected, "invocation bound %d reached before %q", bound, name)
		}
		if f := t.execute(action); f != nil {
			return f
		}

		if action.Final {
			return &domain.Success{Session: t.e.NewSession(), Final: true, Messages: t.out.History()}
		}
		if action.Trigger != "" {
			if f := t.resolve(action.Trigger, false); f != nil {
				return f
			}
			continue
		}
		if action.Wait && name != goal {
			t.s.Repetition = t.nextRepetition(name)
			return t.success()
		}
	}
}

// repeats reports whether running the waiting action again would exceed the
// repetition bound.
func (t *turn) repeats(name string) bool {
	settings := t.e.cfg.Settings
	if settings.RedirectAction == "" || settings.RedirectAction == name {
		return false
	}
	return t.nextRepetition(name).Count > settings.RepetitionNb
}

func (t *turn) nextRepetition(name string) domain.Repetition {
	if t.s.Repetition.Action == name {
		return domain.Repetition{Action: name, Count: t.s.Repetition.Count + 1}
	}
	return domain.Repetition{Action: name, Count: 1}
}

func (t *turn) execute(action *domain.Action) *domain.Failure {
	t.invocations++
	if action.AnswerID != "" {
		t.out.Send(sender.Answer(action.AnswerID))
	}
	input := t.store.Read(action.InputContexts...)
	if t.e.cfg.Settings.Debug {
		t.out.Send(sender.Text(debugLine(action.Name, "INPUT", input)))
	}

	t.e.logger.DebugContext(t.ctx, "invoking action", "action", action.Name, "handler", action.Handler)
	t.e.emitActionInvoke(t.ctx, action, input)
	start := time.Now()
	output, err := t.e.invoker.Invoke(t.ctx, action, t.store, t.out)
	t.e.emitActionReturn(t.ctx, action, output, err != nil, time.Since(start))
	if err != nil {
		return &domain.Failure{
			Kind:   domain.HandlerExecutionError,
			Detail: fmt.Sprintf("action %q failed", action.Name),
			Cause:  err,
		}
	}

	t.store = t.store.Merge(output)
	t.s.RanHandlers = append(t.s.RanHandlers, action.Name)
	t.s.LastAction = action.Name
	t.pos = t.e.machine.Advance(t.pos, action.Name)

	if t.e.cfg.Settings.Debug {
		t.out.Send(sender.Text(debugLine(action.Name, "OUTPUT", output)))
	}
	return nil
}

func (t *turn) success() *domain.Success {
	t.s.Contexts = t.store.Values()
	t.pos.Apply(t.s)
	return &domain.Success{Session: t.s, Messages: t.out.History()}
}

func (t *turn) have() map[string]bool {
	keys := t.store.Keys()
	have := make(map[string]bool, len(keys))
	for _, k := range keys {
		have[k] = true
	}
	return have
}

func debugLine(action, direction string, values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s : %v", k, values[k]))
	}
	return fmt.Sprintf("[DEBUG] %s : %s CONTEXTS [ %s ]", action, direction, strings.Join(parts, " | "))
}
