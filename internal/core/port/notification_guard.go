package port

import (
	"context"
	"time"
)

// NotificationGuard provides the short-lived cross-process mutual exclusion
// around notification sends: an exclusive per-user lock plus a time-based
// de-duplication marker that suppresses repeat sends inside the cool-down
// window. Locks are external rather than in-process so the dispatcher stays
// safe if two instances briefly overlap during a deploy.
type NotificationGuard interface {
	// AcquireLock takes the per-user send lock. It returns false without
	// error when another holder owns the lock.
	AcquireLock(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	// ReleaseLock drops the per-user send lock. Releasing an absent lock is a no-op.
	ReleaseLock(ctx context.Context, userID string) error
	// LastNotifiedAt returns when the user was last notified, if a dedup
	// marker is still alive.
	LastNotifiedAt(ctx context.Context, userID string) (time.Time, bool, error)
	// MarkNotified records the dedup marker with the supplied TTL.
	MarkNotified(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
}

// SweepGuard serializes the daily health check sweep across process instances.
type SweepGuard interface {
	// AcquireSweepLock takes the global sweep lock, returning false when a
	// sweep is already running elsewhere.
	AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error)
	// ReleaseSweepLock drops the global sweep lock.
	ReleaseSweepLock(ctx context.Context) error
}
