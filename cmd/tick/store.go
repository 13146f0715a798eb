package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/aretw0/tick/internal/config"
	"github.com/aretw0/tick/pkg/adapters/file"
	"github.com/aretw0/tick/pkg/adapters/memory"
	"github.com/aretw0/tick/pkg/adapters/redis"
	"github.com/aretw0/tick/pkg/adapters/sqlstore"
	"github.com/aretw0/tick/pkg/persistence/middleware"
	"github.com/aretw0/tick/pkg/ports"
)

const redisPrefix = "tick:"

// backend is the session persistence selected by the host configuration.
type backend struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	close  func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend opens the configured store and wraps it with PII masking and
// encryption when configured. Redis also provides the distributed lock.
func openBackend(ctx context.Context, h *config.Host, logger *slog.Logger) (*backend, error) {
	b := &backend{}
	switch h.Store {
	case config.StoreMemory:
		b.Store = memory.NewStore(memory.WithTTL(h.SessionTTL))
	case config.StoreFile:
		b.Store = file.NewStore(h.DSN)
	case config.StoreRedis:
		store := redis.New(h.DSN, os.Getenv("TICK_REDIS_PASSWORD"), 0, redis.WithTTL(h.SessionTTL), redis.WithPrefix(redisPrefix))
		b.Store, b.close = store, store.Close
		b.Locker = redis.NewLocker(store.Client(), redisPrefix)
	case config.StorePostgres, config.StoreSQLite:
		store, err := sqlstore.Open(ctx, h.Store, h.DSN)
		if err != nil {
			return nil, err
		}
		b.Store, b.close = store, store.Close
	default:
		return nil, fmt.Errorf("unknown store %q", h.Store)
	}

	var mws []middleware.Middleware
	if len(h.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(h.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if h.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(h.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	b.Store = middleware.Chain(b.Store, mws...)

	logger.Debug("session store opened", "store", h.Store, "pii_patterns", len(h.PIIPatterns), "encrypted", h.EncryptionKey != "")
	return b, nil
}
