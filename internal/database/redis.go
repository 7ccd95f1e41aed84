package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/drawlytics/drawlytics-go/internal/config"
)

// NewRedisConnection builds and pings a redis client from config.
func NewRedisConnection(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
