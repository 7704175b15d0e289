package services

import (
	"ai-chat-api/internal/config"
	"ai-chat-api/internal/models"
)

// Unlimited is the remaining figure reported for quota-exempt users.
const Unlimited = -1

// QuotaPolicy decides whether a user may start another exchange. It reads the
// limit from cfg on every call and has no other state.
type QuotaPolicy struct {
	cfg *config.Config
}

func NewQuotaPolicy(cfg *config.Config) *QuotaPolicy {
	return &QuotaPolicy{cfg: cfg}
}

func (q *QuotaPolicy) Limit() int {
	return q.cfg.UsageLimit
}

// Remaining is max(0, limit - usage), or Unlimited for exempt users.
func (q *QuotaPolicy) Remaining(user *models.User) int {
	if user.Unlimited {
		return Unlimited
	}
	remaining := q.Limit() - user.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (q *QuotaPolicy) Admit(user *models.User) (bool, int) {
	remaining := q.Remaining(user)
	if remaining == 0 {
		return false, 0
	}
	return true, remaining
}
