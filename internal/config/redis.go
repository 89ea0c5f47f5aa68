package config

// This file defines the Redis client constructor shared by the engine
// (real-time seat update subscriptions) and the harness (publishing
// those updates).  If the server cannot be reached during startup the
// constructor returns nil and callers degrade gracefully: the client
// falls back to interval polling alone, the harness skips fan-out.

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects using the loaded configuration and verifies
// the connection with a short ping.  The returned client may be nil if
// the server is unreachable.
func NewRedisClient(cfg Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
