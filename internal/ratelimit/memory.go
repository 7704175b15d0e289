package ratelimit

import (
	"context"
	"sync"
	"time"

	"ai-chat-api/internal/config"
)

const sweepEvery = 1024

// MemoryLimiter keeps hit timestamps per key in process memory. It is meant
// for development, tests and single-instance deployments.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	hits  map[string][]time.Time
	calls int
}

func NewMemoryLimiter(cfg config.RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  cfg.Times,
		window: cfg.Window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(cutoff)
	}

	hits := prune(l.hits[key], cutoff)

	if len(hits) >= l.limit {
		l.hits[key] = hits
		return Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: retryAfter(hits[0], l.window, now),
		}, nil
	}

	hits = append(hits, now)
	l.hits[key] = hits

	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(hits),
	}, nil
}

// sweep drops keys whose every hit has left the window.
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		if len(prune(hits, cutoff)) == 0 {
			delete(l.hits, key)
		}
	}
}

// prune drops timestamps at or before cutoff; hits are kept in insertion
// order so the survivors are a suffix.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
