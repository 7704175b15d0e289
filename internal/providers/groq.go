package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/models"
)

const maxErrorBody = 512

// GroqClient talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model    string        `json:"model"`
	Messages []groqMessage `json:"messages"`
}

type groqResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqClient builds a client; a nil httpClient means http.DefaultClient.
func NewGroqClient(cfg config.GroqConfig, httpClient *http.Client) *GroqClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GroqClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

func (c *GroqClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(groqRequest{
		Model:    c.model,
		Messages: []groqMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", newProviderError(models.ProviderGroq, "failed to encode groq request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", newProviderError(models.ProviderGroq, "failed to build groq request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", newProviderError(models.ProviderGroq, "groq request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newProviderError(models.ProviderGroq, "failed to read groq response", err)
	}

	var parsed groqResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return "", newProviderError(models.ProviderGroq, fmt.Sprintf("groq returned status %d: %s", resp.StatusCode, msg), nil)
	}

	if decodeErr != nil {
		return "", newProviderError(models.ProviderGroq, "malformed groq response", decodeErr)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", newProviderError(models.ProviderGroq, "groq returned an empty completion", nil)
	}

	return parsed.Choices[0].Message.Content, nil
}
