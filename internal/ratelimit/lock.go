package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrLockNotConfigured = errors.New("lock client not configured")

// Compare-and-delete so an expired holder cannot drop a lease that a
// second instance has since taken.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out single-holder leases on Redis keys. The scheduler uses
// it so only one replica sweeps artifacts at a time.
type Locker struct {
	client *redis.Client
}

// Lease is a held lock. The zero value is a no-op.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// NewLocker returns nil when Redis is disabled.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// Acquire returns a nil lease and no error when someone else holds key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if !l.Enabled() {
		return nil, ErrLockNotConfigured
	}
	if key == "" || ttl <= 0 {
		return nil, errors.New("lock needs a key and a positive ttl")
	}

	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !won {
		return nil, err
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.client == nil {
		return nil
	}
	return releaseLease.Run(ctx, le.client, []string{le.key}, le.token).Err()
}

// WithLock runs fn while holding key and reports whether it ran. Without
// Redis there is nobody to race, so fn always runs.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	if !l.Enabled() {
		return true, fn(ctx)
	}
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil || lease == nil {
		return false, err
	}
	defer lease.Release(context.WithoutCancel(ctx))
	return true, fn(ctx)
}
