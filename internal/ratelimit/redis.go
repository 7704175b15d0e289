package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ai-chat-api/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter stores each key's hits in a sorted set scored by time, so every
// API instance and session shares one window per user.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  cfg.Times,
		window: cfg.Window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := keyPrefix + key
	now := l.now()
	cutoff := now.Add(-l.window)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	count := int(card.Val())
	if count <= l.limit {
		return Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - count,
		}, nil
	}

	// Over the limit: the rejected hit must not occupy the window.
	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	wait := l.window
	if len(oldest) > 0 {
		wait = retryAfter(time.Unix(0, int64(oldest[0].Score)), l.window, now)
	}

	return Result{
		Allowed:    false,
		Limit:      l.limit,
		Remaining:  0,
		RetryAfter: wait,
	}, nil
}
