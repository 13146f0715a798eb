package ports

import (
	"context"

	"github.com/aretw0/tick/pkg/domain"
)

// SessionStore persists conversation sessions between turns.
type SessionStore interface {
	// Save persists the session of a conversation.
	Save(ctx context.Context, conversationID string, session *domain.Session) error

	// Load retrieves the session of a conversation.
	// Returns domain.ErrSessionNotFound if the conversation has no session.
	Load(ctx context.Context, conversationID string) (*domain.Session, error)

	// Delete removes the session of a conversation. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns the ids of every stored conversation.
	List(ctx context.Context) ([]string, error)
}
