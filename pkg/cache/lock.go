package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token, so a
// holder whose TTL lapsed cannot release a lock another instance has taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks stored in Redis.
type Locker struct {
	client *redis.Client
}

// NewLocker wraps a Redis client. A nil client yields a locker that always grants.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Lease is a held lock.
type Lease struct {
	key   string
	token string
}

// TryLock attempts to take key for ttl. ok is false when another holder owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	lease := &Lease{key: key, token: uuid.NewString()}
	if l == nil || l.client == nil {
		return lease, true, nil
	}

	ok, err := l.client.SetNX(ctx, key, lease.token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lease, true, nil
}

// Release frees the lease if it is still owned.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if l == nil || l.client == nil || lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{lease.key}, lease.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", lease.key, err)
	}
	return nil
}
