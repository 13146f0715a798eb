package ports

import (
	"context"

	"github.com/aretw0/tick/pkg/domain"
)

// StoryLoader retrieves a story definition from its source (file, memory).
// Loaders decode and normalize the story; validation is the engine's job.
type StoryLoader interface {
	Load(ctx context.Context) (*domain.Configuration, error)
}
