package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeConsumesFromFullBucket(t *testing.T) {
	t.Parallel()
	allowed, tokens, refill := Take(10, 100, 100, 10, 1)
	assert.True(t, allowed)
	assert.InDelta(t, 9, tokens, 1e-9)
	assert.InDelta(t, 100, refill, 1e-9)
}

func TestTakeDeniesEmptyBucket(t *testing.T) {
	t.Parallel()
	allowed, tokens, _ := Take(0.2, 100, 100, 10, 1)
	assert.False(t, allowed)
	assert.InDelta(t, 0.2, tokens, 1e-9)
}

func TestTakeRefillsByElapsedTime(t *testing.T) {
	t.Parallel()
	// 0.5 tokens left, 2 seconds elapsed at 1 token/s → 2.5 tokens → allow.
	allowed, tokens, _ := Take(0.5, 100, 102, 10, 1)
	assert.True(t, allowed)
	assert.InDelta(t, 1.5, tokens, 1e-9)
}

func TestTakeCapsAtCapacity(t *testing.T) {
	t.Parallel()
	allowed, tokens, _ := Take(5, 0, 1000, 10, 1)
	assert.True(t, allowed)
	assert.InDelta(t, 9, tokens, 1e-9)
}

func TestTakeClockSkewClampedToZero(t *testing.T) {
	t.Parallel()
	allowed, tokens, refill := Take(3, 200, 100, 10, 1)
	assert.True(t, allowed)
	assert.InDelta(t, 2, tokens, 1e-9)
	assert.InDelta(t, 100, refill, 1e-9)
}

func TestAllowedCallsBoundedByCapacityPlusRefill(t *testing.T) {
	t.Parallel()
	// Over any window T, allowed calls <= capacity + floor(refill*T).
	const capacity = 5
	const refillRate = 2.0
	tokens, last := float64(capacity), 0.0

	allowedCount := 0
	for i := 0; i < 100; i++ {
		now := float64(i) * 0.1 // 10 seconds total
		ok, newTokens, newLast := Take(tokens, last, now, capacity, refillRate)
		tokens, last = newTokens, newLast
		if ok {
			allowedCount++
		}
	}
	assert.LessOrEqual(t, allowedCount, capacity+int(refillRate*10))
}
