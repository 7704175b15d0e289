package services

import (
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindRateLimited
	KindProviderUnavailable
	KindQuotaExceeded
	KindProvider
	KindStorage
	KindUnauthorized
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindProvider:
		return "provider_error"
	case KindStorage:
		return "storage_error"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// ExchangeError is the single failure type of a chat exchange. Message is safe
// to show to the client; Err keeps the cause for logs.
type ExchangeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExchangeError) Error() string {
	return e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Terminal reports whether a WebSocket session must close after this error.
func (e *ExchangeError) Terminal() bool {
	return e.Kind == KindUnauthorized || e.Kind == KindInternal
}

func NewValidationError(msg string) *ExchangeError {
	return &ExchangeError{Kind: KindValidation, Message: msg}
}

func NewRateLimitedError(retryAfterSeconds int) *ExchangeError {
	return &ExchangeError{
		Kind:    KindRateLimited,
		Message: fmt.Sprintf("You have exceeded the rate limit. Please try again after %d seconds.", retryAfterSeconds),
	}
}

func NewProviderUnavailableError() *ExchangeError {
	return &ExchangeError{
		Kind:    KindProviderUnavailable,
		Message: "This AI provider is currently unavailable due to free-tier limits.",
	}
}

func NewQuotaExceededError(limit int) *ExchangeError {
	return &ExchangeError{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("AI usage limit reached. You have used all %d free messages.", limit),
	}
}

func NewProviderError(err error) *ExchangeError {
	return &ExchangeError{
		Kind:    KindProvider,
		Message: fmt.Sprintf("AI platform error: %s", err),
		Err:     err,
	}
}

func NewStorageError(err error) *ExchangeError {
	return &ExchangeError{
		Kind:    KindStorage,
		Message: fmt.Sprintf("Database error: %s", err),
		Err:     err,
	}
}

func NewUnauthorizedError(msg string, err error) *ExchangeError {
	return &ExchangeError{Kind: KindUnauthorized, Message: msg, Err: err}
}

func NewInternalError(err error) *ExchangeError {
	return &ExchangeError{Kind: KindInternal, Message: "Internal server error", Err: err}
}
