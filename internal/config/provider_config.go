package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ai-chat-api/internal/models"
)

const defaultAvailability = "groq:true,gemini:false"

type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// ProviderConfig is fixed per deployment. Availability is a switch flipped by
// operators, not a health signal.
type ProviderConfig struct {
	Availability      map[models.Provider]bool
	Timeout           time.Duration
	RequestsPerMinute int
	Groq              GroqConfig
	Gemini            GeminiConfig
}

func NewProviderConfig() (ProviderConfig, error) {
	availability, err := ParseAvailability(getEnv("PROVIDER_AVAILABILITY", defaultAvailability))
	if err != nil {
		return ProviderConfig{}, err
	}

	return ProviderConfig{
		Availability:      availability,
		Timeout:           getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		RequestsPerMinute: getEnvInt("PROVIDER_RPM", 30),
		Groq: GroqConfig{
			APIKey:  getEnv("GROQ_API_KEY", ""),
			Model:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			BaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
	}, nil
}

// ParseAvailability reads "groq:true,gemini:false". Providers that are not
// mentioned are unavailable.
func ParseAvailability(s string) (map[models.Provider]bool, error) {
	out := make(map[models.Provider]bool, len(models.AllProviders))
	for _, p := range models.AllProviders {
		out[p] = false
	}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, flag, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid provider availability entry %q", pair)
		}
		p, err := models.ParseProvider(name)
		if err != nil {
			return nil, err
		}
		available, err := strconv.ParseBool(strings.TrimSpace(flag))
		if err != nil {
			return nil, fmt.Errorf("invalid availability flag for %s: %w", p, err)
		}
		out[p] = available
	}

	return out, nil
}
