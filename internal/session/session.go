package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	applog "ai-chat-api/internal/logger"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/services"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateReady
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	default:
		return "closed"
	}
}

// Authenticator resolves a handshake token to a live user.
type Authenticator interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

type Deps struct {
	Auth    Authenticator
	Chat    services.ChatService
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
}

// Session owns one upgraded connection. Run is the only reader and the only
// data-frame writer; the ping loop writes control frames, which gorilla
// allows concurrently.
type Session struct {
	conn  *websocket.Conn
	token string
	deps  Deps

	user  *models.User
	state atomic.Int32
}

func New(conn *websocket.Conn, token string, deps Deps) *Session {
	s := &Session{conn: conn, token: token, deps: deps}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// errTransport ends the loop without attempting a close handshake.
var errTransport = errors.New("transport failure")

// Run authenticates the connection and serves frames until the client leaves
// or a terminal fault occurs. It always closes the connection.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()
	defer s.setState(StateClosed)

	s.setState(StateAuthenticating)
	user, err := s.deps.Auth.VerifyToken(ctx, s.token)
	if err != nil {
		applog.LogEvent(logrus.InfoLevel, "WebSocket authentication failed", logrus.Fields{
			"error": err.Error(),
		})
		s.closeWith(websocket.ClosePolicyViolation, "Could not validate credentials")
		return
	}
	s.user = user

	s.deps.Metrics.SessionOpened()
	defer s.deps.Metrics.SessionClosed()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(done)

	applog.LogEvent(logrus.InfoLevel, "WebSocket session opened", logrus.Fields{"user_id": user.ID})
	s.setState(StateReady)

	for {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				applog.LogEvent(logrus.WarnLevel, "WebSocket read error", logrus.Fields{
					"user_id": user.ID,
					"error":   err.Error(),
				})
			}
			applog.LogEvent(logrus.InfoLevel, "WebSocket session closed", logrus.Fields{"user_id": user.ID})
			return
		}

		s.setState(StateProcessing)
		if err := s.handle(ctx, raw); err != nil {
			s.terminate(err)
			return
		}
		s.setState(StateReady)
	}
}

// handle processes one inbound frame. A nil return keeps the session open;
// anything else is terminal.
func (s *Session) handle(ctx context.Context, raw []byte) error {
	var req services.ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.writeError("Invalid message format: expected {\"provider\": ..., \"prompt\": ...}")
	}

	provider, err := s.deps.Chat.Validate(req)
	if err != nil {
		return s.writeError(err.Error())
	}

	res, err := s.deps.Limiter.Allow(ctx, ratelimit.UserKey(s.user.ID.String()))
	if err != nil {
		return services.NewInternalError(fmt.Errorf("rate limiter unavailable: %w", err))
	}
	if !res.Allowed {
		s.deps.Metrics.RecordRateLimited("websocket")
		return s.writeError(services.NewRateLimitedError(res.RetryAfterSeconds()).Message)
	}

	result, err := s.deps.Chat.Exchange(ctx, s.user.ID, provider, req.Prompt)
	if err != nil {
		var xerr *services.ExchangeError
		if !errors.As(err, &xerr) {
			return services.NewInternalError(err)
		}
		if xerr.Terminal() {
			return xerr
		}
		return s.writeError(xerr.Message)
	}

	return s.write(newSuccessFrame(result))
}

func (s *Session) terminate(err error) {
	if errors.Is(err, errTransport) {
		return
	}

	fields := logrus.Fields{"user_id": s.user.ID, "error": err.Error()}

	var xerr *services.ExchangeError
	if errors.As(err, &xerr) && xerr.Kind == services.KindUnauthorized {
		applog.LogEvent(logrus.WarnLevel, "Closing WebSocket session: user no longer valid", fields)
		s.closeWith(websocket.ClosePolicyViolation, xerr.Message)
		return
	}

	applog.LogEvent(logrus.ErrorLevel, "Closing WebSocket session on internal error", fields)
	_ = s.writeError("Internal server error")
	s.closeWith(websocket.CloseInternalServerErr, "Internal server error")
}

func (s *Session) write(v interface{}) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errTransport, err)
	}
	return nil
}

func (s *Session) writeError(msg string) error {
	return s.write(ErrorFrame{Error: msg})
}

func (s *Session) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (s *Session) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
