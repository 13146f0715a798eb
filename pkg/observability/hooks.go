package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tick/pkg/domain"
)

// Combine fans every event out to each set of hooks, in order.
func Combine(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			for _, h := range all {
				if h.OnTurnStart != nil {
					h.OnTurnStart(ctx, e)
				}
			}
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			for _, h := range all {
				if h.OnTurnEnd != nil {
					h.OnTurnEnd(ctx, e)
				}
			}
		},
		OnActionInvoke: func(ctx context.Context, e *domain.ActionEvent) {
			for _, h := range all {
				if h.OnActionInvoke != nil {
					h.OnActionInvoke(ctx, e)
				}
			}
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			for _, h := range all {
				if h.OnActionReturn != nil {
					h.OnActionReturn(ctx, e)
				}
			}
		},
	}
}

// LogHooks logs turns at Info and actions at Debug. Context values are not
// logged; they may carry personal data.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_start", "story", e.Story, "intent", e.Intent, "state", e.State)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "turn_end",
				"story", e.Story,
				"intent", e.Intent,
				"state", e.State,
				"outcome", e.Outcome,
				"invocations", e.Invocations,
			)
		},
		OnActionInvoke: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_invoke", "action", e.Action, "handler", e.Handler)
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_return",
				"action", e.Action,
				"is_error", e.IsError,
				"duration", e.Duration,
			)
		},
	}
}
