package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker probes Redis
type RedisChecker struct {
	BaseChecker
	client *redis.Client
}

// NewRedisChecker creates a Redis probe. The connection is established lazily
// so the checker can report an outage that starts before the first check.
func NewRedisChecker(address, password string, db int) *RedisChecker {
	client := redis.NewClient(&redis.Options{
		Addr:       address,
		Password:   password,
		DB:         db,
		PoolSize:   1,
		MaxRetries: -1,
	})

	return &RedisChecker{
		BaseChecker: BaseChecker{checkerType: "redis"},
		client:      client,
	}
}

// HealthCheck verifies Redis connectivity
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisChecker) Close() error {
	return r.client.Close()
}
