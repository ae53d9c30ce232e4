package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const (
	defaultGuardPrefix = "bot"

	notifyLockSegment = "lock:notify"
	sweepLockKey      = "lock:healthcheck"
	dedupSegment      = "dedup"
)

// NotificationGuard implements the per-user send lock, the dedup cool-down
// marker, and the global sweep lock on Redis. All keys self-expire so a
// crashed holder heals within its TTL.
type NotificationGuard struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewNotificationGuard constructs a guard with the provided Redis client and key prefix.
func NewNotificationGuard(client *red.Client, keyPrefix string) *NotificationGuard {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultGuardPrefix
	}

	return &NotificationGuard{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (g *NotificationGuard) WithClock(clock func() time.Time) {
	if clock != nil {
		g.now = clock
	}
}

// AcquireLock takes the per-user send lock. It returns false without error
// when another holder owns the lock.
func (g *NotificationGuard) AcquireLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, errors.New("user id is required")
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", g.prefix, notifyLockSegment, userID)
	acquired, err := g.client.SetNX(ctx, key, g.now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire notify lock: %w", err)
	}

	return acquired, nil
}

// ReleaseLock drops the per-user send lock. Releasing an absent lock is a no-op.
func (g *NotificationGuard) ReleaseLock(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s:%s:%s", g.prefix, notifyLockSegment, userID)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis release notify lock: %w", err)
	}
	return nil
}

// LastNotifiedAt returns when the user was last notified while the dedup
// marker is still alive.
func (g *NotificationGuard) LastNotifiedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	key := fmt.Sprintf("%s:%s:%s", g.prefix, dedupSegment, userID)

	raw, err := g.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis get dedup marker: %w", err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse dedup marker: %w", err)
	}

	return time.Unix(unix, 0).UTC(), true, nil
}

// MarkNotified records the dedup marker with the supplied TTL.
func (g *NotificationGuard) MarkNotified(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := fmt.Sprintf("%s:%s:%s", g.prefix, dedupSegment, userID)
	if err := g.client.Set(ctx, key, at.UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set dedup marker: %w", err)
	}

	return nil
}

// AcquireSweepLock takes the global sweep lock, returning false when a sweep
// is already running elsewhere.
func (g *NotificationGuard) AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	key := fmt.Sprintf("%s:%s", g.prefix, sweepLockKey)
	acquired, err := g.client.SetNX(ctx, key, g.now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire sweep lock: %w", err)
	}

	return acquired, nil
}

// ReleaseSweepLock drops the global sweep lock.
func (g *NotificationGuard) ReleaseSweepLock(ctx context.Context) error {
	key := fmt.Sprintf("%s:%s", g.prefix, sweepLockKey)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis release sweep lock: %w", err)
	}
	return nil
}
