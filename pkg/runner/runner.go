package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/pkg/domain"
)

// Conversation is the slice of the engine the runner needs. *tick.Engine
// implements it.
type Conversation interface {
	Handle(ctx context.Context, conversationID string, action domain.UserAction) (domain.Result, error)
	Session(ctx context.Context, conversationID string) (*domain.Session, error)
	End(ctx context.Context, conversationID string) error
}

// Runner handles the read-handle-write loop of one conversation.
type Runner struct {
	conv    Conversation
	id      string
	handler IOHandler
	logger  *slog.Logger
	banner  string
}

// New creates a Runner for the conversation id.
func New(conv Conversation, id string, opts ...Option) *Runner {
	r := &Runner{
		conv:   conv,
		id:     id,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run executes the loop until the input ends, a quit command arrives or ctx
// is canceled. Store and lock errors stop the run; turn failures are
// presented and the loop goes on.
func (r *Runner) Run(ctx context.Context) error {
	if r.banner != "" {
		if err := r.handler.SystemOutput(ctx, r.banner); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}

	for {
		in, err := r.handler.Input(ctx)
		if err != nil {
			var bad *InputError
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.As(err, &bad):
				if err := r.handler.SystemOutput(ctx, "! "+bad.Error()); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
				continue
			case ctx.Err() != nil:
				r.logger.Debug("runner interrupted", "conversation_id", r.id, "err", ctx.Err())
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		done, err := r.step(ctx, in)
		if err != nil || done {
			return err
		}
	}
}

func (r *Runner) step(ctx context.Context, in Input) (bool, error) {
	switch in.Command {
	case CommandQuit:
		return true, r.handler.SystemOutput(ctx, "Bye!")
	case CommandReset:
		if err := r.conv.End(ctx, r.id); err != nil {
			return false, fmt.Errorf("reset failed: %w", err)
		}
		r.logger.Debug("conversation reset", "conversation_id", r.id)
		return false, r.handler.SystemOutput(ctx, "Conversation reset.")
	case CommandSession:
		s, err := r.conv.Session(ctx, r.id)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return false, fmt.Errorf("session lookup failed: %w", err)
		}
		return false, r.handler.Session(ctx, s)
	case CommandNone:
	default:
		return false, r.handler.SystemOutput(ctx, fmt.Sprintf("unknown command %q", in.Command))
	}

	res, err := r.conv.Handle(ctx, r.id, in.Action)
	if err != nil {
		return false, err
	}
	if f, ok := res.(*domain.Failure); ok {
		r.logger.Debug("turn failed", "conversation_id", r.id, "intent", in.Action.Intent, "kind", f.Kind)
	}
	if err := r.handler.Output(ctx, res); err != nil {
		return false, fmt.Errorf("output error: %w", err)
	}
	return false, nil
}
