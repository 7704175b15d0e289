package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	ErrRecaptchaMissing = errors.New("reCAPTCHA token is required")
	ErrRecaptchaFailed  = errors.New("reCAPTCHA verification failed. Please try again.")
)

type RecaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

type recaptchaVerifier struct {
	secret   string
	enabled  bool
	endpoint string
	client   *http.Client
}

// NewRecaptchaVerifier returns a verifier that accepts every token when
// enabled is false.
func NewRecaptchaVerifier(secret string, enabled bool) RecaptchaVerifier {
	return &recaptchaVerifier{
		secret:   secret,
		enabled:  enabled,
		endpoint: recaptchaVerifyURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *recaptchaVerifier) Verify(ctx context.Context, token string) error {
	if !v.enabled {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrRecaptchaMissing
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("Error verifying reCAPTCHA: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("Error verifying reCAPTCHA: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Error verifying reCAPTCHA: status %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("Error verifying reCAPTCHA: %w", err)
	}

	if !result.Success {
		return ErrRecaptchaFailed
	}
	return nil
}
