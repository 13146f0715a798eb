package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/internal/planner"
	"github.com/aretw0/tick/internal/statemachine"
	"github.com/aretw0/tick/internal/unknown"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/registry"
	"github.com/aretw0/tick/pkg/schema"
)

// Engine processes turns of one story. It holds no per-conversation state
// and is safe for concurrent use by any number of conversations.
type Engine struct {
	cfg     *domain.Configuration
	machine *statemachine.Machine
	planner *planner.Planner
	policy  *unknown.Policy
	invoker *registry.Invoker
	schema  schema.Schema
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the clock stamping hook events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine builds the engine of a validated story.
func NewEngine(cfg *domain.Configuration, reg *registry.Registry, opts ...Option) (*Engine, error) {
	machine, err := statemachine.New(cfg.StateMachine)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	types, err := schema.FromContexts(cfg.Contexts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}

	e := &Engine{
		cfg:     cfg,
		machine: machine,
		planner: planner.New(cfg, machine),
		policy:  unknown.New(cfg),
		invoker: registry.NewInvoker(reg, types),
		schema:  types,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Configuration returns the story the engine serves.
func (e *Engine) Configuration() *domain.Configuration {
	return e.cfg
}

// Machine returns the indexed state machine of the story.
func (e *Engine) Machine() *statemachine.Machine {
	return e.machine
}

// NewSession creates a clean session at the story's initial state.
func (e *Engine) NewSession() *domain.Session {
	s := domain.NewSession("")
	e.machine.Initial().Apply(s)
	return s
}

// Process runs one turn. The given session is never modified; on success
// the result carries the next session, on failure the caller keeps its own.
func (e *Engine) Process(ctx context.Context, session *domain.Session, action domain.UserAction) domain.Result {
	if session == nil {
		session = e.NewSession()
	}
	t := e.newTurn(ctx, session, action)

	e.emitTurnStart(ctx, action.Intent, t.pos.Current)
	res := t.run()
	e.emitTurnEnd(ctx, action.Intent, t, res)

	if f, ok := res.(*domain.Failure); ok {
		e.logger.WarnContext(ctx, "turn failed", "intent", action.Intent, "kind", f.Kind, "detail", f.Detail, "err", f.Cause)
	}
	return res
}

func (e *Engine) emitTurnStart(ctx context.Context, intent, state string) {
	if e.hooks.OnTurnStart == nil {
		return
	}
	e.hooks.OnTurnStart(ctx, &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTurnStart, Story: e.cfg.Name},
		Intent:    intent,
		State:     state,
	})
}

func (e *Engine) emitTurnEnd(ctx context.Context, intent string, t *turn, res domain.Result) {
	if e.hooks.OnTurnEnd == nil {
		return
	}
	outcome := "success"
	switch r := res.(type) {
	case *domain.Success:
		if r.Final {
			outcome = "final"
		}
	case *domain.Failure:
		outcome = string(r.Kind)
	}
	e.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
		EventBase:   domain.EventBase{Timestamp: e.now(), Type: domain.EventTurnEnd, Story: e.cfg.Name},
		Intent:      intent,
		State:       t.pos.Current,
		Outcome:     outcome,
		Invocations: t.invocations,
	})
}

func (e *Engine) emitActionInvoke(ctx context.Context, action *domain.Action, input map[string]any) {
	if e.hooks.OnActionInvoke == nil {
		return
	}
	e.hooks.OnActionInvoke(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventActionInvoke, Story: e.cfg.Name},
		Action:    action.Name,
		Handler:   action.Handler,
		Input:     input,
	})
}

func (e *Engine) emitActionReturn(ctx context.Context, action *domain.Action, output map[string]any, isError bool, took time.Duration) {
	if e.hooks.OnActionReturn == nil {
		return
	}
	e.hooks.OnActionReturn(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventActionReturn, Story: e.cfg.Name},
		Action:    action.Name,
		Handler:   action.Handler,
		Output:    output,
		IsError:   isError,
		Duration:  took,
	})
}
