package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the number of goroutines waiting on it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to conversation sessions.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates the entry of a conversation and takes a reference.
// The caller must lock entry.mu and call release once unlocked.
func (m *Manager) acquire(conversationID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[conversationID]
	if !exists {
		entry = &lockEntry{}
		m.locks[conversationID] = entry
	}
	entry.refs++
	return entry
}

// release drops a reference and forgets the entry when unused.
func (m *Manager) release(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[conversationID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, conversationID)
	}
}

// Load retrieves the session of a conversation.
func (m *Manager) Load(ctx context.Context, conversationID string) (*domain.Session, error) {
	var session *domain.Session
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, conversationID)
		return err
	})
	return session, err
}

// LoadOrCreate loads the session of a conversation, creating and saving a
// fresh one when none exists.
func (m *Manager) LoadOrCreate(ctx context.Context, conversationID string, fresh func() *domain.Session) (*domain.Session, error) {
	var session *domain.Session
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		session, err = m.loadOrCreate(ctx, conversationID, fresh)
		return err
	})
	return session, err
}

func (m *Manager) loadOrCreate(ctx context.Context, conversationID string, fresh func() *domain.Session) (*domain.Session, error) {
	session, created, err := m.loadOrFresh(ctx, conversationID, fresh)
	if err != nil || !created {
		return session, err
	}
	if err := m.store.Save(ctx, conversationID, session); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return session, nil
}

// loadOrFresh returns the stored session, or an unsaved fresh one.
func (m *Manager) loadOrFresh(ctx context.Context, conversationID string, fresh func() *domain.Session) (*domain.Session, bool, error) {
	session, err := m.store.Load(ctx, conversationID)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return fresh(), true, nil
}

// Save persists the session of a conversation.
func (m *Manager) Save(ctx context.Context, conversationID string, session *domain.Session) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Save(ctx, conversationID, session)
	})
}

// Delete removes the session of a conversation.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Delete(ctx, conversationID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying store. Inside WithLock, use it directly:
// the Manager's own methods would lock again.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Turn runs one turn under the conversation lock. It loads the session, or
// starts from an unsaved fresh one, and hands it to fn. fn's decision is
// applied to the store: a non-nil next session is saved, a nil one with done
// set deletes the conversation, and an error leaves the store untouched.
func (m *Manager) Turn(ctx context.Context, conversationID string, fresh func() *domain.Session, fn func(*domain.Session) (next *domain.Session, done bool, err error)) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		current, _, err := m.loadOrFresh(ctx, conversationID, fresh)
		if err != nil {
			return err
		}
		next, done, err := fn(current)
		switch {
		case err != nil:
			return err
		case done:
			return m.store.Delete(ctx, conversationID)
		case next != nil:
			return m.store.Save(ctx, conversationID, next)
		}
		return nil
	})
}

// WithLock executes fn while holding the lock of the conversation.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.WarnContext(ctx, "failed to release distributed lock (will expire via TTL)",
					"conversation_id", conversationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
