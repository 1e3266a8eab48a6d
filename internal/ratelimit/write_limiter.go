package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/nanolite/internal/config"
)

const (
	keyWrite = "nanolite:ratelimit:write:%s"
	keyLogin = "nanolite:ratelimit:login:%s"
)

// WriteLimiter throttles record writes per user and login attempts per
// client address.
type WriteLimiter struct {
	bucket *TokenBucket

	writeRate  float64
	writeBurst int
	loginRate  float64
	loginBurst int
}

// NewWriteLimiter returns nil when rate limiting or Redis is disabled.
func NewWriteLimiter(cfg config.Config, client *redis.Client) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, fmt.Errorf("write rate limit must be positive")
	}
	if limitCfg.LoginRate <= 0 || limitCfg.LoginBurst <= 0 {
		return nil, fmt.Errorf("login rate limit must be positive")
	}
	return &WriteLimiter{
		bucket:     NewTokenBucket(client),
		writeRate:  limitCfg.WriteRate,
		writeBurst: limitCfg.WriteBurst,
		loginRate:  limitCfg.LoginRate,
		loginBurst: limitCfg.LoginBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowWrite(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWrite, strings.TrimSpace(userID)), l.writeRate, l.writeBurst)
}

func (l *WriteLimiter) AllowLogin(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyLogin, strings.TrimSpace(clientIP)), l.loginRate, l.loginBurst)
}
