package ratelimit

import (
	"context"
	"math"
	"time"
)

// Limiter is a sliding-window counter shared by every surface that accepts
// chat traffic. Keys are opaque; callers use "user:<id>".
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds up so a client never retries too early.
func (r Result) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 && !r.Allowed {
		return 1
	}
	return secs
}

func UserKey(id string) string {
	return "user:" + id
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	wait := oldest.Add(window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
