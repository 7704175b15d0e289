package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/services"

	"github.com/sirupsen/logrus"
)

// ProviderCatalog lists providers and their static availability.
type ProviderCatalog interface {
	Providers() []models.Provider
	Availability() map[models.Provider]bool
}

type ChatHandler struct {
	chatService services.ChatService
	catalog     ProviderCatalog
}

func NewChatHandler(chatService services.ChatService, catalog ProviderCatalog) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		catalog:     catalog,
	}
}

type historyResponse struct {
	Chat      []models.ChatRecord `json:"chat"`
	UsageInfo services.UsageInfo  `json:"usage_info"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Remaining int    `json:"remaining"`
}

func (h *ChatHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"platforms": h.catalog.Providers(),
	})
}

func (h *ChatHandler) ProviderAvailability(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"availability": h.catalog.Availability(),
	})
}

// History returns the caller's exchanges with one provider, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	provider, err := models.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	records, usage, err := h.chatService.History(r.Context(), user, provider)
	if err != nil {
		logger.LogEvent(logrus.ErrorLevel, "Failed to load chat history", logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		})
		respondWithError(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if records == nil {
		records = []models.ChatRecord{}
	}

	respondWithJSON(w, http.StatusOK, historyResponse{Chat: records, UsageInfo: usage})
}

// Chat is the request/response twin of the WebSocket session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req services.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider, err := h.chatService.Validate(req)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := h.chatService.Exchange(r.Context(), user.ID, provider, req.Prompt)
	if err != nil {
		var xerr *services.ExchangeError
		if !errors.As(err, &xerr) {
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		respondWithError(w, exchangeStatus(xerr.Kind), xerr.Message)
		return
	}

	respondWithJSON(w, http.StatusOK, chatResponse{
		Response:  result.Record.Response,
		Remaining: result.Remaining,
	})
}

func exchangeStatus(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	case services.KindProviderUnavailable, services.KindQuotaExceeded:
		return http.StatusForbidden
	case services.KindProvider:
		return http.StatusBadGateway
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
