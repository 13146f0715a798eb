package memory

import (
	"context"
	"errors"

	"github.com/aretw0/tick/pkg/domain"
)

// Loader implements ports.StoryLoader for a story built in code.
type Loader struct {
	cfg *domain.Configuration
}

// NewLoader wraps an in-memory story.
func NewLoader(cfg *domain.Configuration) *Loader {
	return &Loader{cfg: cfg}
}

// Load returns the story with its state ids normalized.
func (l *Loader) Load(ctx context.Context) (*domain.Configuration, error) {
	if l.cfg == nil {
		return nil, errors.New("memory loader: no story")
	}
	if l.cfg.StateMachine != nil {
		l.cfg.StateMachine.Normalize()
	}
	return l.cfg, nil
}
