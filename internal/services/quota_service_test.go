package services

import (
	"testing"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestQuotaPolicyAdmit(t *testing.T) {
	q := NewQuotaPolicy(&config.Config{UsageLimit: 10})

	tests := []struct {
		name          string
		user          models.User
		wantAllowed   bool
		wantRemaining int
	}{
		{"fresh user", models.User{UsageCount: 0}, true, 10},
		{"under limit", models.User{UsageCount: 5}, true, 5},
		{"one left", models.User{UsageCount: 9}, true, 1},
		{"at limit", models.User{UsageCount: 10}, false, 0},
		{"over limit", models.User{UsageCount: 12}, false, 0},
		{"unlimited at limit", models.User{UsageCount: 10, Unlimited: true}, true, Unlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, remaining := q.Admit(&tt.user)
			assert.Equal(t, tt.wantAllowed, allowed)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestQuotaPolicyReadsLimitAtCallTime(t *testing.T) {
	cfg := &config.Config{UsageLimit: 10}
	q := NewQuotaPolicy(cfg)
	user := &models.User{UsageCount: 3}

	allowed, _ := q.Admit(user)
	assert.True(t, allowed)

	cfg.UsageLimit = 3
	allowed, remaining := q.Admit(user)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 3, q.Limit())
}

func TestQuotaPolicyZeroLimitRejectsEveryone(t *testing.T) {
	q := NewQuotaPolicy(&config.Config{UsageLimit: 0})

	allowed, _ := q.Admit(&models.User{})
	assert.False(t, allowed)

	allowed, remaining := q.Admit(&models.User{Unlimited: true})
	assert.True(t, allowed)
	assert.Equal(t, Unlimited, remaining)
}
