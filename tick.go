package tick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/internal/runtime"
	"github.com/aretw0/tick/internal/validator"
	"github.com/aretw0/tick/pkg/adapters/file"
	"github.com/aretw0/tick/pkg/adapters/memory"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/ports"
	"github.com/aretw0/tick/pkg/registry"
	"github.com/aretw0/tick/pkg/session"
)

// Engine is the entry point of the library. It wraps the turn processor of
// one story and the session manager of its conversations.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	sessions *session.Manager

	store   ports.SessionStore
	locker  ports.DistributedLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore sets where Handle keeps sessions. Defaults to memory.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes Handle across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithClock overrides the clock stamping hook events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// ValidationError lists why a story was refused.
type ValidationError struct {
	Story  string
	Errors []domain.StructuralError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		msgs[i] = se.Error()
	}
	return fmt.Sprintf("story %q has %d error(s): %s", e.Story, len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidConfiguration
}

// Validate checks a story. When reg is not nil, declared handlers must be
// registered in it. An empty result is the only acceptable precondition for
// serving.
func Validate(cfg *domain.Configuration, reg *registry.Registry) []domain.StructuralError {
	if reg == nil {
		return validator.Validate(cfg)
	}
	return validator.Validate(cfg, validator.WithHandlers(reg))
}

// New validates the story and builds its engine. An invalid story returns a
// *ValidationError.
func New(cfg *domain.Configuration, reg *registry.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		reg = registry.NewRegistry()
	}
	eng := &Engine{registry: reg}
	for _, opt := range opts {
		opt(eng)
	}

	if cfg == nil {
		return nil, &ValidationError{Errors: validator.Validate(nil)}
	}
	if cfg.StateMachine != nil {
		cfg.StateMachine.Normalize()
	}
	eng.Name = cfg.Name
	if errs := Validate(cfg, reg); len(errs) > 0 {
		return nil, &ValidationError{Story: cfg.Name, Errors: errs}
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("story", eng.Name)
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.now != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.now))
	}
	rt, err := runtime.NewEngine(cfg, reg, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
		if eng.lockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
		}
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)
	return eng, nil
}

// Load builds the engine of the story a loader provides.
func Load(ctx context.Context, loader ports.StoryLoader, reg *registry.Registry, opts ...Option) (*Engine, error) {
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	return New(cfg, reg, opts...)
}

// LoadFile builds the engine of a YAML or JSON story file.
func LoadFile(ctx context.Context, path string, reg *registry.Registry, opts ...Option) (*Engine, error) {
	return Load(ctx, file.NewLoader(path), reg, opts...)
}

// Configuration returns the story the engine serves.
func (e *Engine) Configuration() *domain.Configuration {
	return e.runtime.Configuration()
}

// Registry returns the handler registry of the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Sessions returns the session manager used by Handle.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// NewSession creates a clean session at the story's initial state.
func (e *Engine) NewSession() *domain.Session {
	return e.runtime.NewSession()
}

// Process runs one turn on a session owned by the caller. The session is
// never modified; a *domain.Success carries the next one.
func (e *Engine) Process(ctx context.Context, s *domain.Session, action domain.UserAction) domain.Result {
	return e.runtime.Process(ctx, s, action)
}

// Session returns the stored session of a conversation.
func (e *Engine) Session(ctx context.Context, conversationID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, conversationID)
}

// End deletes the session of a conversation.
func (e *Engine) End(ctx context.Context, conversationID string) error {
	return e.sessions.Delete(ctx, conversationID)
}

// errTurnFailed aborts a managed turn without touching the store.
var errTurnFailed = errors.New("turn failed")

// Handle runs one turn of a conversation under the conversation lock. The
// session is loaded, or started fresh and unsaved, then saved after a
// success, deleted after a final success and left untouched after a failure.
// The error reports store and lock problems only; turn failures come back as
// *domain.Failure.
func (e *Engine) Handle(ctx context.Context, conversationID string, action domain.UserAction) (domain.Result, error) {
	var res domain.Result
	err := e.sessions.Turn(ctx, conversationID, e.NewSession, func(s *domain.Session) (*domain.Session, bool, error) {
		res = e.runtime.Process(ctx, s, action)
		switch r := res.(type) {
		case *domain.Success:
			return r.Session, r.Final, nil
		default:
			return nil, false, errTurnFailed
		}
	})
	if err != nil && !errors.Is(err, errTurnFailed) {
		return nil, err
	}
	return res, nil
}
