package config

import "time"

// RateLimitConfig bounds how many chat messages one user may send inside a
// sliding window, across every connection and the HTTP path.
type RateLimitConfig struct {
	Times  int
	Window time.Duration
}

func NewRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Times:  getEnvInt("RATE_LIMIT_TIMES", 5),
		Window: time.Duration(getEnvInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}
}

// WindowSeconds is the window as shown to users in rate-limit errors.
func (c RateLimitConfig) WindowSeconds() int {
	return int(c.Window / time.Second)
}
