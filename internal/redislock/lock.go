// Package redislock provides the per-video distributed lock: a single-setter
// Redis key with expiry so a crashed holder's lock evaporates at the TTL.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Lock enforces at most one highlight worker per video ID.
type Lock struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New builds a lock with the given key prefix and TTL.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Lock {
	return &Lock{client: client, prefix: prefix, ttl: ttl}
}

func (l *Lock) key(videoID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, videoID)
}

// Acquire attempts to take the lock for videoID. Returns false when another
// worker already holds it.
func (l *Lock) Acquire(ctx context.Context, videoID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(videoID), "locked", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock for %s: %w", videoID, err)
	}
	if ok {
		log.Info().Str("videoId", videoID).Msg("lock acquired")
	} else {
		log.Warn().Str("videoId", videoID).Msg("lock already held")
	}
	return ok, nil
}

// Release drops the lock. Best effort: releasing a lock we do not hold is a
// no-op, never an error.
func (l *Lock) Release(ctx context.Context, videoID string) {
	if err := l.client.Del(ctx, l.key(videoID)).Err(); err != nil {
		log.Warn().Err(err).Str("videoId", videoID).Msg("lock release failed")
		return
	}
	log.Info().Str("videoId", videoID).Msg("lock released")
}

// Extend pushes the lock expiry out by extra beyond the base TTL, for jobs
// that outlive the initial lease.
func (l *Lock) Extend(ctx context.Context, videoID string, extra time.Duration) (bool, error) {
	ok, err := l.client.Expire(ctx, l.key(videoID), l.ttl+extra).Result()
	if err != nil {
		return false, fmt.Errorf("extend lock for %s: %w", videoID, err)
	}
	return ok, nil
}
