package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/models"
)

// Client sends one prompt to an AI backend and returns the completion text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderError is any failure to obtain a completion: transport errors,
// timeouts, non-2xx replies, unparseable or empty bodies.
type ProviderError struct {
	Provider models.Provider
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(p models.Provider, reason string, err error) *ProviderError {
	return &ProviderError{Provider: p, Reason: reason, Err: err}
}

// Gateway maps the closed provider set onto registered clients and the static
// availability table loaded at startup.
type Gateway struct {
	clients      map[models.Provider]Client
	availability map[models.Provider]bool
	timeout      time.Duration
	metrics      *metrics.Metrics
}

func NewGateway(cfg config.ProviderConfig, clients map[models.Provider]Client, m *metrics.Metrics) *Gateway {
	availability := make(map[models.Provider]bool, len(models.AllProviders))
	for _, p := range models.AllProviders {
		availability[p] = cfg.Availability[p]
	}

	return &Gateway{
		clients:      clients,
		availability: availability,
		timeout:      cfg.Timeout,
		metrics:      m,
	}
}

// NewClients builds a throttled client for every provider that has an API key.
func NewClients(cfg config.ProviderConfig) (map[models.Provider]Client, error) {
	clients := make(map[models.Provider]Client)

	if cfg.Groq.APIKey != "" {
		clients[models.ProviderGroq] = NewThrottled(NewGroqClient(cfg.Groq, nil), cfg.RequestsPerMinute)
	}

	if cfg.Gemini.APIKey != "" {
		gemini, err := NewGeminiClient(context.Background(), cfg.Gemini)
		if err != nil {
			return nil, err
		}
		clients[models.ProviderGemini] = NewThrottled(gemini, cfg.RequestsPerMinute)
	}

	return clients, nil
}

func (g *Gateway) Providers() []models.Provider {
	out := make([]models.Provider, len(models.AllProviders))
	copy(out, models.AllProviders)
	return out
}

func (g *Gateway) IsAvailable(p models.Provider) bool {
	return g.availability[p]
}

// Availability returns a copy of the availability table.
func (g *Gateway) Availability() map[models.Provider]bool {
	out := make(map[models.Provider]bool, len(g.availability))
	for p, ok := range g.availability {
		out[p] = ok
	}
	return out
}

func (g *Gateway) Resolve(p models.Provider) (Client, error) {
	client, ok := g.clients[p]
	if !ok {
		return nil, newProviderError(p, fmt.Sprintf("%s client is not configured", p), nil)
	}
	return client, nil
}

// Dispatch resolves the provider's client and calls it under the configured
// timeout. Every failure comes back as a *ProviderError.
func (g *Gateway) Dispatch(ctx context.Context, p models.Provider, prompt string) (string, error) {
	client, err := g.Resolve(p)
	if err != nil {
		return "", err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := client.Complete(ctx, prompt)
	g.metrics.ObserveProvider(p.String(), err == nil, time.Since(start))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newProviderError(p, fmt.Sprintf("%s request timed out after %s", p, g.timeout), nil)
		}
		var perr *ProviderError
		if errors.As(err, &perr) {
			return "", perr
		}
		return "", newProviderError(p, fmt.Sprintf("%s request failed", p), err)
	}

	return text, nil
}
