package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes the turns of one conversation across
// processes. The session manager takes the lock around load, process and save.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx ends. The lock expires after ttl
	// even if the holder never unlocks, so a crashed replica cannot wedge a
	// conversation.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
