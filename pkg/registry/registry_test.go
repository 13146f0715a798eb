package registry

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/contexts"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/schema"
	"github.com/aretw0/tick/pkg/sender"
)

func noop(context.Context, map[string]any, sender.Sender) (map[string]any, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("greet", noop))

	err := r.Register("greet", noop)
	assert.ErrorIs(t, err, domain.ErrHandlerCollision)
	assert.Error(t, r.Register("", noop))
	assert.Panics(t, func() { r.MustRegister("greet", noop) })

	assert.True(t, r.Has("greet"))
	assert.Equal(t, []string{"greet"}, r.Names())
}

func TestRegistry_Mount(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Mount(Funcs{NS: "flights", Funcs: map[string]HandlerFunc{
		"search": noop,
		"book":   noop,
	}}))
	assert.Equal(t, []string{"flights.book", "flights.search"}, r.Names())

	t.Run("Collision registers nothing", func(t *testing.T) {
		err := r.Mount(Funcs{NS: "flights", Funcs: map[string]HandlerFunc{
			"cancel": noop,
			"book":   noop,
		}})
		assert.ErrorIs(t, err, domain.ErrHandlerCollision)
		assert.False(t, r.Has("flights.cancel"))
	})
}

func TestInvoker_ProjectsInputs(t *testing.T) {
	r := NewRegistry()
	var seen map[string]any
	r.MustRegister("spy", func(_ context.Context, in map[string]any, _ sender.Sender) (map[string]any, error) {
		seen = maps.Clone(in)
		in["A"] = "tampered"
		return map[string]any{"B": 1}, nil
	})

	inv := NewInvoker(r, schema.Schema{"B": schema.Int()})
	store := contexts.New(map[string]any{"A": "a", "SECRET": "s"})
	action := &domain.Action{Name: "spy", Handler: "spy", InputContexts: []string{"A"}, OutputContexts: []string{"B"}}

	out, err := inv.Invoke(context.Background(), action, store, sender.NewBuffer())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"A": "a"}, seen)
	assert.Equal(t, map[string]any{"B": 1}, out)
	assert.Equal(t, "a", store.Read("A")["A"])
}

func TestInvoker_Failures(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("boom", func(context.Context, map[string]any, sender.Sender) (map[string]any, error) {
		return nil, errors.New("upstream timeout")
	})
	r.MustRegister("panics", func(context.Context, map[string]any, sender.Sender) (map[string]any, error) {
		panic("nil map")
	})
	r.MustRegister("leaks", func(context.Context, map[string]any, sender.Sender) (map[string]any, error) {
		return map[string]any{"OTHER": 1}, nil
	})
	r.MustRegister("mistyped", func(context.Context, map[string]any, sender.Sender) (map[string]any, error) {
		return map[string]any{"B": "one"}, nil
	})

	inv := NewInvoker(r, schema.Schema{"B": schema.Int()})
	store := contexts.New(nil)

	tests := []struct {
		handler string
		target  error
		contain string
	}{
		{"boom", nil, "upstream timeout"},
		{"panics", nil, "panic: nil map"},
		{"leaks", nil, `context "OTHER": not declared`},
		{"mistyped", nil, "output contract violated"},
		{"missing", domain.ErrHandlerNotFound, "handler not found"},
	}

	for _, tt := range tests {
		t.Run(tt.handler, func(t *testing.T) {
			action := &domain.Action{Name: "act", Handler: tt.handler, OutputContexts: []string{"B"}}
			_, err := inv.Invoke(context.Background(), action, store, sender.NewBuffer())
			require.Error(t, err)

			var herr *HandlerError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, "act", herr.Action)
			assert.Contains(t, err.Error(), tt.contain)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestInvoker_NoHandlerAssertsOutputs(t *testing.T) {
	inv := NewInvoker(nil, nil)
	action := &domain.Action{Name: "greet", OutputContexts: []string{"GREETED", "WELCOMED"}}

	out, err := inv.Invoke(context.Background(), action, contexts.New(nil), sender.NewBuffer())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"GREETED": true, "WELCOMED": true}, out)
}

func TestInvoker_WaitingActionLeavesOutputs(t *testing.T) {
	inv := NewInvoker(nil, nil)
	action := &domain.Action{Name: "ask_destination", Wait: true, OutputContexts: []string{"DESTINATION"}}

	out, err := inv.Invoke(context.Background(), action, contexts.New(nil), sender.NewBuffer())
	require.NoError(t, err)
	assert.Empty(t, out)
}
