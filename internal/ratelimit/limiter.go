// Package ratelimit implements a Redis-backed token bucket shared across
// gateway processes. The refill-and-consume step runs server-side as a single
// Lua script so concurrent callers never race between read and write.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Bucket state expires after an hour of quiet so idle keys clean up; the
// EXPIRE inside the script matches this.
const keyTTLSeconds = 3600

// tokenBucketScript mirrors Take below; both must implement the same
// arithmetic.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1])
local last_refill = tonumber(bucket[2])

if tokens == nil then
    tokens = capacity
    last_refill = now
else
    local elapsed = math.max(0, now - last_refill)
    tokens = math.min(capacity, tokens + (elapsed * refill_rate))
    last_refill = now
end

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
    redis.call('EXPIRE', key, 3600)
    return 1
else
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
    return 0
end
`

// Limiter evaluates the token bucket against Redis.
type Limiter struct {
	client redis.UniversalClient
	script *redis.Script
}

// New builds a limiter on the given Redis client.
func New(client redis.UniversalClient) *Limiter {
	return &Limiter{client: client, script: redis.NewScript(tokenBucketScript)}
}

// Allow consumes one token from the bucket under key. A Redis failure fails
// open: the request is allowed and a warning is logged.
func (l *Limiter) Allow(ctx context.Context, key string, capacity int, refillRate float64) bool {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	res, err := l.script.Run(ctx, l.client, []string{key}, capacity, refillRate, now).Int()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, failing open")
		return true
	}
	return res == 1
}

// Take is the pure refill-and-consume step, kept in lockstep with the Lua
// script so the arithmetic is testable without Redis. It returns whether a
// token was consumed plus the updated bucket state.
func Take(tokens, lastRefill, now float64, capacity int, refillRate float64) (allowed bool, newTokens, newRefill float64) {
	elapsed := now - lastRefill
	if elapsed < 0 {
		elapsed = 0
	}
	tokens += elapsed * refillRate
	if tokens > float64(capacity) {
		tokens = float64(capacity)
	}
	if tokens >= 1 {
		return true, tokens - 1, now
	}
	return false, tokens, now
}
