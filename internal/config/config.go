package config

import (
	"fmt"
	"os"
	"time"
)

// Config is built once at startup and handed to every constructor that needs
// it. Tests build their own instance instead of touching the environment.
type Config struct {
	Port             string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	UsageLimit       int
	RateLimit        RateLimitConfig
	Providers        ProviderConfig
	Redis            RedisConfig
	RecaptchaSecret  string
	RecaptchaEnabled bool
	CORSOrigins      []string
	LogLevel         string
	LogFile          string
}

func Load() (*Config, error) {
	providers, err := NewProviderConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnv("PORT", "5050"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		UsageLimit:      getEnvInt("AI_USAGE_LIMIT", 10),
		RateLimit:       NewRateLimitConfig(),
		Providers:       providers,
		Redis:           NewRedisConfig(),
		RecaptchaSecret: getEnv("RECAPTCHA_SECRET_KEY", ""),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}
	cfg.RecaptchaEnabled = cfg.RecaptchaSecret != "" && !getEnvBool("TESTING", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.UsageLimit < 0 {
		return fmt.Errorf("AI_USAGE_LIMIT must not be negative, got %d", c.UsageLimit)
	}
	if c.RateLimit.Times <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_TIMES and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}
