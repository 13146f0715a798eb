package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/ports"
)

const (
	envelopeState = "encrypted"
	sealedKey     = "__sealed__"
	keyIDKey      = "__kid__"
)

var (
	// ErrNotEncrypted is returned when a stored session is not an envelope.
	ErrNotEncrypted = errors.New("session is missing encrypted data envelope")
	// ErrUnknownKey is returned when no configured key sealed the envelope.
	ErrUnknownKey = errors.New("session was sealed with an unknown key")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals every saved session. Must be 32 bytes (AES-256).
	ActiveKey []byte

	// FallbackKeys still open sessions sealed before a key rotation.
	FallbackKeys [][]byte
}

// keyID names a key without revealing it.
func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

type encryptionMiddleware struct {
	next     ports.SessionStore
	activeID string
	keys     map[string]cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that stores each session as
// an AES-GCM sealed envelope tagged with the id of its key. The conversation
// id is authenticated along with the ciphertext, so an envelope copied to
// another conversation does not open.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	m := &encryptionMiddleware{keys: make(map[string]cipher.AEAD)}
	for i, key := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		if len(key) != 32 {
			if i == 0 {
				return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(key))
			}
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i-1, len(key))
		}
		aead, err := newGCM(key)
		if err != nil {
			return nil, err
		}
		id := keyID(key)
		if i == 0 {
			m.activeID = id
		}
		m.keys[id] = aead
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, activeID: m.activeID, keys: m.keys}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, conversationID string, session *domain.Session) error {
	plain, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	aead := m.keys[m.activeID]
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, []byte(conversationID))

	// the envelope hides position, objectives and contexts alike
	envelope := &domain.Session{
		CurrentState: envelopeState,
		Contexts: map[string]any{
			sealedKey: base64.StdEncoding.EncodeToString(sealed),
			keyIDKey:  m.activeID,
		},
	}
	return m.next.Save(ctx, conversationID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, conversationID string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Contexts[sealedKey].(string)
	if !ok {
		return nil, ErrNotEncrypted
	}
	id, _ := envelope.Contexts[keyIDKey].(string)
	aead, ok := m.keys[id]
	if !ok {
		return nil, fmt.Errorf("failed to decrypt session: %w (kid %q)", ErrUnknownKey, id)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("failed to decrypt session: ciphertext too short")
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, []byte(conversationID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}
	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, conversationID string) error {
	return m.next.Delete(ctx, conversationID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
