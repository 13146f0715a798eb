package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/adapters/memory"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	s := domain.NewSession("greet")
	s.Contexts["GREETED"] = true
	require.NoError(t, store.Save(ctx, "c1", s))

	s.Contexts["GREETED"] = false
	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, true, loaded.Contexts["GREETED"])

	loaded.ObjectivesStack = append(loaded.ObjectivesStack, "bye")
	again, _ := store.Load(ctx, "c1")
	assert.Empty(t, again.ObjectivesStack)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithTTL(time.Minute), memory.WithClock(func() time.Time { return now }))

	require.NoError(t, store.Save(ctx, "c1", domain.NewSession("greet")))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, "c2", domain.NewSession("greet")))

	now = now.Add(30 * time.Second)
	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = store.Load(ctx, "c2")
	assert.NoError(t, err)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)

	// saving refreshes the expiry
	require.NoError(t, store.Save(ctx, "c2", domain.NewSession("greet")))
	now = now.Add(59 * time.Second)
	_, err = store.Load(ctx, "c2")
	assert.NoError(t, err)
}

func TestMemoryLoader_Contract(t *testing.T) {
	cfg := &domain.Configuration{
		Name: "greetings",
		StateMachine: &domain.MachineState{
			Initial: "greet",
			States:  map[string]*domain.MachineState{"greet": {}, "bye": {}},
		},
	}
	ports.RunStoryLoaderContract(t, memory.NewLoader(cfg), "greetings")
}
