package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/adapters/file"
	"github.com/aretw0/tick/pkg/adapters/memory"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/persistence/middleware"
	"github.com/aretw0/tick/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := encrypted(t, file.NewStore(t.TempDir()), middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSessionStoreContract(t, store)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	original := domain.NewSession("ask_destination")
	original.Contexts["CARD_NUMBER"] = "4111 1111 1111 1111"
	original.ObjectivesStack = []string{"book"}
	require.NoError(t, secure.Save(ctx, "c1", original))

	stored, err := underlying.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "encrypted", stored.CurrentState)
	assert.NotContains(t, stored.Contexts, "CARD_NUMBER")
	assert.Empty(t, stored.ObjectivesStack)

	loaded, err := secure.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "4111 1111 1111 1111", loaded.Contexts["CARD_NUMBER"])
	assert.Equal(t, []string{"book"}, loaded.ObjectivesStack)
	assert.Equal(t, "ask_destination", loaded.CurrentState)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	original := domain.NewSession("greet")
	original.Contexts["DATA"] = "sealed with the old key"
	require.NoError(t, encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, "c1", original))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "sealed with the old key", loaded.Contexts["DATA"])

	_, err = encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey}).Load(ctx, "c1")
	assert.ErrorIs(t, err, middleware.ErrUnknownKey)

	// a save through the rotated store moves the session to the new key
	require.NoError(t, rotated.Save(ctx, "c1", loaded))
	_, err = encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey}).Load(ctx, "c1")
	assert.NoError(t, err)
}

func TestEncryptionMiddleware_BoundToConversation(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "alice", domain.NewSession("greet")))
	envelope, err := underlying.Load(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, "mallory", envelope))

	_, err = secure.Load(ctx, "mallory")
	assert.ErrorContains(t, err, "failed to decrypt session")
	_, err = secure.Load(ctx, "alice")
	assert.NoError(t, err)
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1}}})
	assert.Error(t, err)

	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", domain.NewSession("greet")))

	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err = secure.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)

	_, err = secure.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
