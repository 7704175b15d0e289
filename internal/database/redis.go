package database

import (
	"context"
	"fmt"
	"time"

	"ai-chat-api/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance holding shared rate-limit
// counters and fails fast when it is unreachable.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
