package middleware

import (
	"net/http"
	"strconv"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/services"

	"github.com/sirupsen/logrus"
)

// RateLimiter applies the shared per-user window to authenticated HTTP
// routes. It must run after AuthMiddleware.
type RateLimiter struct {
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
}

func NewRateLimiter(limiter ratelimit.Limiter, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{limiter: limiter, metrics: m}
}

func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := services.UserFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		res, err := rl.limiter.Allow(r.Context(), ratelimit.UserKey(user.ID.String()))
		if err != nil {
			logger.LogEvent(logrus.ErrorLevel, "Rate limiter unavailable", logrus.Fields{
				"user_id": user.ID,
				"error":   err.Error(),
			})
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			rl.metrics.RecordRateLimited("http")
			w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
			writeJSONError(w, http.StatusTooManyRequests, services.NewRateLimitedError(res.RetryAfterSeconds()).Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}
