package session

import (
	"time"

	"ai-chat-api/internal/models"
	"ai-chat-api/internal/services"
)

// SuccessFrame is sent after a committed exchange.
type SuccessFrame struct {
	Prompt    string          `json:"prompt"`
	Response  string          `json:"response"`
	CreatedAt string          `json:"created_at"`
	Provider  models.Provider `json:"provider"`
	Remaining int             `json:"remaining"`
}

// ErrorFrame carries every recoverable failure; the connection stays open.
type ErrorFrame struct {
	Error string `json:"error"`
}

func newSuccessFrame(res *services.ExchangeResult) SuccessFrame {
	return SuccessFrame{
		Prompt:    res.Record.Prompt,
		Response:  res.Record.Response,
		CreatedAt: res.Record.CreatedAt.UTC().Format(time.RFC3339),
		Provider:  res.Record.Provider,
		Remaining: res.Remaining,
	}
}
