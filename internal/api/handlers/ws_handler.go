package handlers

import (
	"net/http"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/middleware"
	"ai-chat-api/internal/session"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSHandler upgrades /ai/ws/chat and hands the connection to a session.
type WSHandler struct {
	deps     session.Deps
	upgrader websocket.Upgrader
}

func NewWSHandler(deps session.Deps, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.ExtractBearerToken(r)
	}

	// Auth failures are reported as a 1008 close after the upgrade.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.LogEvent(logrus.WarnLevel, "WebSocket upgrade failed", logrus.Fields{"error": err.Error()})
		return
	}

	session.New(conn, token, h.deps).Run(r.Context())
}

// originChecker admits non-browser clients (no Origin header) and the
// configured CORS origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}
