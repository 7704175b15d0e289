package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled spaces calls to an upstream so one process stays inside the
// provider's free-tier request budget. Waiting honours the caller's deadline.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
}

// NewThrottled wraps next with a requests-per-minute budget. A non-positive
// rpm disables throttling.
func NewThrottled(next Client, rpm int) Client {
	if rpm <= 0 {
		return next
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

func (t *Throttled) Complete(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.Complete(ctx, prompt)
}
