package registry

import (
	"context"
	"fmt"

	"github.com/aretw0/tick/pkg/contexts"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/schema"
	"github.com/aretw0/tick/pkg/sender"
)

// HandlerError reports a handler that failed, panicked or broke its
// declared output contract.
type HandlerError struct {
	Action  string
	Handler string
	Cause   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("action %s (handler %s): %v", e.Action, e.Handler, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// Invoker runs handlers behind the context projection boundary.
type Invoker struct {
	registry *Registry
	schema   schema.Schema
}

// NewInvoker creates an invoker over a registry. The schema types the
// story's contexts; a nil schema accepts any value.
func NewInvoker(r *Registry, s schema.Schema) *Invoker {
	if r == nil {
		r = NewRegistry()
	}
	return &Invoker{registry: r, schema: s}
}

// Invoke runs the action's handler with the projection of its input
// contexts and returns its checked outputs. Actions without a handler assert
// each of their outputs with the value true, except waiting actions whose
// outputs are left for the user's reply.
func (i *Invoker) Invoke(ctx context.Context, action *domain.Action, store contexts.Store, s sender.Sender) (map[string]any, error) {
	if action.Handler == "" {
		if action.Wait {
			return map[string]any{}, nil
		}
		out := make(map[string]any, len(action.OutputContexts))
		for _, name := range action.OutputContexts {
			out[name] = true
		}
		return out, nil
	}

	fn, ok := i.registry.Lookup(action.Handler)
	if !ok {
		return nil, &HandlerError{Action: action.Name, Handler: action.Handler, Cause: domain.ErrHandlerNotFound}
	}

	in := store.Read(action.InputContexts...)
	out, err := call(ctx, fn, in, s)
	if err != nil {
		return nil, &HandlerError{Action: action.Name, Handler: action.Handler, Cause: err}
	}

	if err := schema.ValidatePresent(i.schema.Project(action.OutputContexts...), out); err != nil {
		return nil, &HandlerError{
			Action:  action.Name,
			Handler: action.Handler,
			Cause:   fmt.Errorf("output contract violated: %w", err),
		}
	}
	return contexts.New(out).Values(), nil
}

func call(ctx context.Context, fn HandlerFunc, in map[string]any, s sender.Sender) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, in, s)
}
