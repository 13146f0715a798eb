package ports

import (
	"context"

	"github.com/aretw0/tick/pkg/domain"
)

// TurnProcessor is the stateless core consumed by hosting adapters. Process
// never mutates the given session.
type TurnProcessor interface {
	Process(ctx context.Context, session *domain.Session, action domain.UserAction) domain.Result

	// NewSession returns a clean session at the story's initial state.
	NewSession() *domain.Session
}
