package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Refill happens inside Redis against the server clock so every API
// replica sees the same bucket. The script replies with three integers:
// allowed (0/1), whole tokens left, and milliseconds until the next token.
var takeToken = redis.NewScript(`
local rate, burst, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - last) / 1000 * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, math.floor(tokens), wait}
`)

var (
	errNoBucket     = errors.New("rate limiter not configured")
	errEmptyKey     = errors.New("rate limiter key is empty")
	errBadBucketArg = errors.New("rate limiter rate and burst must be positive")
)

// TokenBucket is a Redis-backed token bucket keyed per caller.
type TokenBucket struct {
	client *redis.Client
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// NewTokenBucket returns nil when Redis is disabled.
func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from key, refilling at rate tokens per second up
// to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	switch {
	case t == nil || t.client == nil:
		return nil, errNoBucket
	case key == "":
		return nil, errEmptyKey
	case rate <= 0 || burst <= 0:
		return nil, errBadBucketArg
	}

	reply, err := takeToken.Run(ctx, t.client, []string{key}, rate, burst, idleTTL(rate, burst).Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("token bucket %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("token bucket %s: unexpected reply %v", key, reply)
	}
	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Limit:      burst,
		Remaining:  int(reply[1]),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// idleTTL keeps a bucket around for twice the time it takes to refill from
// empty; after that it would be full anyway and can be dropped.
func idleTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}
