// Package sqlstore persists sessions in a SQL database. Postgres and SQLite
// are supported through dialects; drivers are registered by the host.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/tick/pkg/domain"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name        string
	placeholder func(n int) string
}

var (
	// Postgres uses numbered placeholders.
	Postgres = Dialect{Name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	// SQLite uses positional placeholders.
	SQLite = Dialect{Name: "sqlite", placeholder: func(int) string { return "?" }}
)

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements ports.SessionStore on a *sql.DB. Each conversation is one
// row holding the session as JSON.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTable overrides the table name (default "tick_sessions").
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// WithClock overrides the clock stamping updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store. The table name must be a plain identifier.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, table: "tick_sessions", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !identifier.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	return s, nil
}

// Open opens a database with a registered driver and returns a migrated store.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if dialect.Name == SQLite.Name {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) p(n int) string {
	return s.dialect.placeholder(n)
}

// Migrate creates the sessions table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	conversation_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the session row.
func (s *Store) Save(ctx context.Context, conversationID string, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (conversation_id, data, updated_at) VALUES (%s, %s, %s) "+
			"ON CONFLICT (conversation_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		s.table, s.p(1), s.p(2), s.p(3))
	if _, err := s.db.ExecContext(ctx, query, conversationID, string(data), s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Load reads the session row.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Session, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE conversation_id = %s", s.table, s.p(1))

	var data string
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the session row.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE conversation_id = %s", s.table, s.p(1))
	if _, err := s.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the stored conversation ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT conversation_id FROM %s ORDER BY conversation_id", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
