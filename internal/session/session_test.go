package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	users map[string]*models.User
}

func (a *stubAuth) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	if user, ok := a.users[token]; ok {
		return user, nil
	}
	return nil, services.ErrInvalidToken
}

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Validate(req services.ChatRequest) (models.Provider, error) {
	args := m.Called(req)
	return args.Get(0).(models.Provider), args.Error(1)
}

func (m *mockChat) Exchange(ctx context.Context, userID uuid.UUID, provider models.Provider, prompt string) (*services.ExchangeResult, error) {
	args := m.Called(userID, provider, prompt)
	res, _ := args.Get(0).(*services.ExchangeResult)
	return res, args.Error(1)
}

func (m *mockChat) History(ctx context.Context, user *models.User, provider models.Provider) ([]models.ChatRecord, services.UsageInfo, error) {
	args := m.Called(user, provider)
	return args.Get(0).([]models.ChatRecord), args.Get(1).(services.UsageInfo), args.Error(2)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

type harness struct {
	user     *models.User
	chat     *mockChat
	srv      *httptest.Server
	finished chan *Session
}

func newHarness(t *testing.T, limiter ratelimit.Limiter) *harness {
	t.Helper()
	h := &harness{
		user:     &models.User{ID: uuid.New(), Email: "ada@example.com", Username: "ada"},
		chat:     &mockChat{},
		finished: make(chan *Session, 1),
	}
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(config.RateLimitConfig{Times: 100, Window: time.Minute})
	}
	deps := Deps{
		Auth:    &stubAuth{users: map[string]*models.User{"good-token": h.user}},
		Chat:    h.chat,
		Limiter: limiter,
	}

	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(conn, r.URL.Query().Get("token"), deps)
		s.Run(context.Background())
		h.finished <- s
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func (h *harness) waitClosed(t *testing.T) *Session {
	t.Helper()
	select {
	case s := <-h.finished:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func requireCloseCode(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, code, ce.Code)
		return
	}
}

func successResult(prompt, response string, remaining int) *services.ExchangeResult {
	return &services.ExchangeResult{
		Record: &models.ChatRecord{
			Provider:  models.ProviderGroq,
			Prompt:    prompt,
			Response:  response,
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		Remaining: remaining,
	}
}

func TestBadTokenClosesWithPolicyViolation(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, "forged")

	requireCloseCode(t, conn, websocket.ClosePolicyViolation)
	assert.Equal(t, StateClosed, h.waitClosed(t).State())
	h.chat.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestSuccessfulExchangeFrame(t *testing.T) {
	h := newHarness(t, nil)
	req := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", req).Return(models.ProviderGroq, nil)
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "Hi").Return(successResult("Hi", "Hello!", 4), nil)

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(req))

	var frame SuccessFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, SuccessFrame{
		Prompt:    "Hi",
		Response:  "Hello!",
		CreatedAt: "2024-05-01T10:00:00Z",
		Provider:  models.ProviderGroq,
		Remaining: 4,
	}, frame)
}

func TestMalformedFrameKeepsSessionOpen(t *testing.T) {
	h := newHarness(t, nil)
	req := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", req).Return(models.ProviderGroq, nil)
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "Hi").Return(successResult("Hi", "Hello!", 9), nil)

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var errFrame ErrorFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Contains(t, errFrame.Error, "Invalid message format")

	require.NoError(t, conn.WriteJSON(req))
	var frame SuccessFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "Hello!", frame.Response)
}

func TestValidationErrorIsRecoverable(t *testing.T) {
	h := newHarness(t, nil)
	bad := services.ChatRequest{Provider: "groq"}
	h.chat.On("Validate", bad).Return(models.Provider(""), services.NewValidationError("Invalid message: prompt is required"))

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(bad))

	var errFrame ErrorFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "Invalid message: prompt is required", errFrame.Error)
	h.chat.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimitedFrame(t *testing.T) {
	h := newHarness(t, ratelimit.NewMemoryLimiter(config.RateLimitConfig{Times: 1, Window: time.Minute}))
	req := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", req).Return(models.ProviderGroq, nil)
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "Hi").Return(successResult("Hi", "Hello!", 9), nil).Once()

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(req))
	var frame SuccessFrame
	require.NoError(t, conn.ReadJSON(&frame))

	require.NoError(t, conn.WriteJSON(req))
	var errFrame ErrorFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Regexp(t, `^You have exceeded the rate limit\. Please try again after \d+ seconds\.$`, errFrame.Error)
	h.chat.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestRecoverableExchangeErrorsKeepSessionOpen(t *testing.T) {
	h := newHarness(t, nil)
	quota := services.ChatRequest{Provider: "groq", Prompt: "over"}
	ok := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", quota).Return(models.ProviderGroq, nil)
	h.chat.On("Validate", ok).Return(models.ProviderGroq, nil)
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "over").Return(nil, services.NewQuotaExceededError(10))
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "Hi").Return(successResult("Hi", "Hello!", 0), nil)

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(quota))
	var errFrame ErrorFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "AI usage limit reached. You have used all 10 free messages.", errFrame.Error)

	require.NoError(t, conn.WriteJSON(ok))
	var frame SuccessFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, 0, frame.Remaining)
}

func TestVanishedUserClosesWithPolicyViolation(t *testing.T) {
	h := newHarness(t, nil)
	req := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", req).Return(models.ProviderGroq, nil)
	h.chat.On("Exchange", h.user.ID, models.ProviderGroq, "Hi").Return(nil, services.NewUnauthorizedError("User not found", nil))

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(req))

	requireCloseCode(t, conn, websocket.ClosePolicyViolation)
	h.waitClosed(t)
}

func TestLimiterFailureClosesWithInternalError(t *testing.T) {
	h := newHarness(t, failingLimiter{})
	req := services.ChatRequest{Provider: "groq", Prompt: "Hi"}
	h.chat.On("Validate", req).Return(models.ProviderGroq, nil)

	conn := h.dial(t, "good-token")
	require.NoError(t, conn.WriteJSON(req))

	var errFrame ErrorFrame
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "Internal server error", errFrame.Error)

	requireCloseCode(t, conn, websocket.CloseInternalServerErr)
	assert.Equal(t, StateClosed, h.waitClosed(t).State())
}

func TestClientCloseEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, "good-token")

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	assert.Equal(t, StateClosed, h.waitClosed(t).State())
}
