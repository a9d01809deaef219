package search

import (
	"sync"
	"time"
)

const (
	breakerThreshold = 3
	probeInterval    = 30 * time.Second
)

// rerankBreaker is a process-local circuit breaker around the reranker.
// Three consecutive failures open it; while open a single probe is let
// through per interval, and one success closes it again.
type rerankBreaker struct {
	mu        sync.Mutex
	failures  int
	lastProbe time.Time
	now       func() time.Time
}

func newRerankBreaker() *rerankBreaker {
	return &rerankBreaker{now: time.Now}
}

// Allow reports whether a rerank call may proceed.
func (b *rerankBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < breakerThreshold {
		return true
	}
	if b.now().Sub(b.lastProbe) >= probeInterval {
		b.lastProbe = b.now()
		return true
	}
	return false
}

// Success closes the breaker.
func (b *rerankBreaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failure records a failed call, opening the breaker at the threshold.
func (b *rerankBreaker) Failure() {
	b.mu.Lock()
	b.failures++
	b.lastProbe = b.now()
	b.mu.Unlock()
}
