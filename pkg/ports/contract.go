package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/domain"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	conversationID := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession("ask_destination")
		session.Contexts["DESTINATION"] = "Paris"
		session.Contexts["count"] = 42
		session.ObjectivesStack = []string{"book"}
		session.RetryCounters["ask_destination|*"] = 1
		session.Regions["payment"] = "paid"
		session.LastAction = "ask_destination"
		session.Repetition = domain.Repetition{Action: "ask_destination", Count: 2}

		require.NoError(t, store.Save(ctx, conversationID, session), "Save should not return error")

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.CurrentState, loaded.CurrentState)
		assert.Equal(t, "Paris", loaded.Contexts["DESTINATION"])
		// JSON backed stores decode numbers as float64; only presence is part of the contract.
		assert.NotNil(t, loaded.Contexts["count"])
		assert.Equal(t, []string{"book"}, loaded.ObjectivesStack)
		assert.Equal(t, 1, loaded.RetryCounters["ask_destination|*"])
		assert.Equal(t, "paid", loaded.Regions["payment"])
		assert.Equal(t, "ask_destination", loaded.LastAction)
		assert.Equal(t, session.Repetition, loaded.Repetition)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, conversationID, domain.NewSession("book")))
		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "book", loaded.CurrentState)
		assert.Empty(t, loaded.Contexts)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, conversationID, domain.NewSession("greet")))

		require.NoError(t, store.Delete(ctx, conversationID), "Delete should not return error")

		_, err := store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, conversationID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSession("greet")))
		require.NoError(t, store.Save(ctx, id2, domain.NewSession("greet")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunStoryLoaderContract verifies that a loader yields a normalized story
// with the given name.
func RunStoryLoaderContract(t *testing.T, loader StoryLoader, name string) {
	t.Helper()

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, name, cfg.Name)
	require.NotNil(t, cfg.StateMachine)
	for id, child := range cfg.StateMachine.States {
		assert.Equal(t, id, child.ID, "state ids are filled from their keys")
	}
}
