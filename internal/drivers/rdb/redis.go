package rdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vlatan/news-sitemap/internal/config"
)

// ErrNotFound is returned when a key is absent from Redis
var ErrNotFound = errors.New("key not found")

type Service struct {
	Client *redis.Client
}

// Produce new Redis service
func New(cfg *config.Config) (*Service, error) {

	if cfg == nil {
		return nil, errors.New("unable to create Redis service with nil config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       0, // use default DB
	})

	return &Service{rdb}, nil
}

// Get fetches a string value from Redis
func (rs *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := rs.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return value, err
}

// Set stores a string value with an expiry
func (rs *Service) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return rs.Client.Set(ctx, key, value, ttl).Err()
}

// Delete removes the given keys
func (rs *Service) Delete(ctx context.Context, keys ...string) error {
	return rs.Client.Del(ctx, keys...).Err()
}

// HSet stores field-value pairs in a hashmap
func (rs *Service) HSet(ctx context.Context, key string, values ...any) error {
	return rs.Client.HSet(ctx, key, values...).Err()
}

// HGetAll fetches a whole hashmap.
// An absent key yields an empty map, not an error.
func (rs *Service) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return rs.Client.HGetAll(ctx, key).Result()
}

// Check if the Redis client is healthy
func (rs *Service) Health(ctx context.Context) map[string]any {

	start := time.Now()

	// Test connectivity
	ping, err := rs.Client.Ping(ctx).Result()
	if err != nil {
		return map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}

	// Get key count
	keyCount, _ := rs.Client.DBSize(ctx).Result()

	// Get server time (useful for checking if server is responsive)
	serverTime, _ := rs.Client.Time(ctx).Result()

	return map[string]any{
		"status":      "healthy",
		"ping":        ping,
		"response_ms": time.Since(start).Milliseconds(),
		"total_keys":  keyCount,
		"server_time": serverTime.Unix(),
	}
}
