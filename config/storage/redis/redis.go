// Package redis provides the Redis cache server connection setup.
package redis

import (
	"context"
	"time"

	"github.com/gofiber/storage/redis/v3"
	redigo "github.com/redis/go-redis/v9"

	config "github.com/crabzie/RabbitMQ-Task-Pipeline/config/utils"
)

type Redis struct {
	Client *redis.Storage
}

// New connects a universal client and wraps it in a key-value storage.
func New(ctx context.Context, cfg *config.Redis) (*Redis, error) {
	client := redigo.NewUniversalClient(&redigo.UniversalOptions{
		Addrs:           []string{cfg.Addr},
		Password:        cfg.Password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 1 * time.Second,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	storage := redis.NewFromConnection(client)

	return &Redis{storage}, nil
}
