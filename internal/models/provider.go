package models

import (
	"fmt"
	"strings"
)

// Provider identifies an AI backend. The set is closed: adding a backend means
// adding a constant here and registering a client for it in the gateway.
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
)

// AllProviders lists every known provider in display order.
var AllProviders = []Provider{
	ProviderGroq,
	ProviderGemini,
}

func (p Provider) String() string {
	return string(p)
}

func (p Provider) Valid() bool {
	for _, known := range AllProviders {
		if p == known {
			return true
		}
	}
	return false
}

// ParseProvider maps a wire value onto a known provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}
