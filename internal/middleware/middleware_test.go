package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthService struct {
	services.AuthService
	user *models.User
}

func (s *stubAuthService) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	if token == "good" {
		return s.user, nil
	}
	return nil, services.ErrInvalidToken
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := services.UserFromContext(r.Context())
		assert.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestExtractBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractBearerToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractBearerToken(r))

	r.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", ExtractBearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractBearerToken(r))
}

func TestAuthMiddleware(t *testing.T) {
	auth := &stubAuthService{user: &models.User{ID: uuid.New()}}
	handler := AuthMiddleware(auth)(okHandler(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decodeError(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	limiter := ratelimit.NewMemoryLimiter(config.RateLimitConfig{Times: 2, Window: time.Minute})
	handler := NewRateLimiter(limiter, nil).RateLimit(okHandler(t))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
		req = req.WithContext(services.WithUserContext(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Contains(t, decodeError(t, blocked), "You have exceeded the rate limit")
}

func TestRateLimitRequiresUser(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(config.RateLimitConfig{Times: 2, Window: time.Minute})
	handler := NewRateLimiter(limiter, nil).RateLimit(okHandler(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
