package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllows(t *testing.T) {
	limiter, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1, WriteBurst: 1}}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowWrite(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowLogin(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNilLockerRunsInline(t *testing.T) {
	locker := NewLocker(nil)
	assert.Nil(t, locker)

	ran := false
	acquired, err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, ran)

	lease, err := locker.Acquire(context.Background(), "k", time.Second)
	assert.True(t, errors.Is(err, ErrLockNotConfigured))
	assert.NoError(t, lease.Release(context.Background()))
}

func TestNilBucketRejects(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errNoBucket)
}

func TestIdleTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, idleTTL(1, 10))
	assert.Equal(t, time.Second, idleTTL(100, 1))
	assert.Equal(t, time.Second, idleTTL(0, 1))
	assert.Equal(t, 3*time.Second, idleTTL(2, 3))
}
