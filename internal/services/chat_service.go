package services

import (
	"context"
	"strings"
	"time"

	applog "ai-chat-api/internal/logger"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/pkg/errors"
	"ai-chat-api/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const commitTimeout = 10 * time.Second

// Dispatcher is the part of the provider gateway an exchange needs.
type Dispatcher interface {
	IsAvailable(p models.Provider) bool
	Dispatch(ctx context.Context, p models.Provider, prompt string) (string, error)
}

// ChatRequest is the inbound payload of both the WebSocket and HTTP surfaces.
type ChatRequest struct {
	Provider string `json:"provider" validate:"required"`
	Prompt   string `json:"prompt" validate:"required"`
}

type ExchangeResult struct {
	Record    *models.ChatRecord
	Remaining int
}

type UsageInfo struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

type ChatService interface {
	// Validate checks a decoded request and returns its provider.
	Validate(req ChatRequest) (models.Provider, error)
	// Exchange runs one prompt end to end. Errors are always *ExchangeError.
	Exchange(ctx context.Context, userID uuid.UUID, provider models.Provider, prompt string) (*ExchangeResult, error)
	History(ctx context.Context, user *models.User, provider models.Provider) ([]models.ChatRecord, UsageInfo, error)
}

type chatService struct {
	userRepo repository.UserRepository
	chatRepo repository.ChatRepository
	gateway  Dispatcher
	quota    *QuotaPolicy
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewChatService(
	userRepo repository.UserRepository,
	chatRepo repository.ChatRepository,
	gateway Dispatcher,
	quota *QuotaPolicy,
	m *metrics.Metrics,
) ChatService {
	return &chatService{
		userRepo: userRepo,
		chatRepo: chatRepo,
		gateway:  gateway,
		quota:    quota,
		validate: validator.New(),
		metrics:  m,
	}
}

func (s *chatService) Validate(req ChatRequest) (models.Provider, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return "", NewValidationError("Invalid message: " + strings.ToLower(fieldErrs[0].Field()) + " is required")
		}
		return "", NewValidationError("Invalid message")
	}

	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		return "", NewValidationError("Invalid message: " + err.Error())
	}
	return provider, nil
}

func (s *chatService) Exchange(ctx context.Context, userID uuid.UUID, provider models.Provider, prompt string) (*ExchangeResult, error) {
	result, xerr := s.exchange(ctx, userID, provider, prompt)
	if xerr != nil {
		s.metrics.RecordExchange(provider.String(), xerr.Kind.String())
		return nil, xerr
	}
	s.metrics.RecordExchange(provider.String(), "success")
	return result, nil
}

func (s *chatService) exchange(ctx context.Context, userID uuid.UUID, provider models.Provider, prompt string) (*ExchangeResult, *ExchangeError) {
	if !s.gateway.IsAvailable(provider) {
		return nil, NewProviderUnavailableError()
	}

	// The counter may have moved since the session authenticated.
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, NewUnauthorizedError("User not found", err)
		}
		return nil, NewStorageError(err)
	}

	if allowed, _ := s.quota.Admit(user); !allowed {
		return nil, NewQuotaExceededError(s.quota.Limit())
	}

	response, err := s.gateway.Dispatch(ctx, provider, prompt)
	if err != nil {
		applog.LogEvent(logrus.WarnLevel, "AI provider request failed", logrus.Fields{
			"user_id":  userID,
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, NewProviderError(err)
	}

	// Once a completion exists the commit must finish even if the caller went away.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	record := &models.ChatRecord{
		Provider: provider,
		Prompt:   prompt,
		Response: response,
	}

	updated, err := s.chatRepo.CommitExchange(commitCtx, user.ID, record, s.quota.Limit())
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrQuotaExceeded):
			return nil, NewQuotaExceededError(s.quota.Limit())
		case errors.Is(err, errors.ErrNotFound):
			return nil, NewUnauthorizedError("User not found", err)
		default:
			applog.LogEvent(logrus.ErrorLevel, "Failed to commit chat exchange", logrus.Fields{
				"user_id":  userID,
				"provider": provider,
				"error":    err.Error(),
			})
			return nil, NewStorageError(err)
		}
	}

	return &ExchangeResult{
		Record:    record,
		Remaining: s.quota.Remaining(updated),
	}, nil
}

func (s *chatService) History(ctx context.Context, user *models.User, provider models.Provider) ([]models.ChatRecord, UsageInfo, error) {
	records, err := s.chatRepo.ListByUserAndProvider(ctx, user.ID, provider)
	if err != nil {
		return nil, UsageInfo{}, err
	}

	fresh, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, UsageInfo{}, err
	}

	return records, UsageInfo{
		Remaining: s.quota.Remaining(fresh),
		Limit:     s.quota.Limit(),
	}, nil
}
