// Package cache provides the key-value cache used for campaign lookups, the
// winner counter and the projected registration status.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the subset of key-value operations the lottery pipeline needs.
type Cache interface {
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	HashSetAll(ctx context.Context, key string, entries map[string]string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	Increment(ctx context.Context, key string) (int64, error)
	Decrement(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache implements Cache on top of a go-redis client.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache parses a redis:// URL and returns a connected cache.
func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisCacheFromClient(redis.NewClient(opts)), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// SetString stores value under key. A zero ttl means no expiration.
func (r *RedisCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// GetString returns ErrCacheMiss when key is absent.
func (r *RedisCache) GetString(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// HashSetAll writes every entry into the hash at key.
func (r *RedisCache) HashSetAll(ctx context.Context, key string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries)*2)
	for field, value := range entries {
		values = append(values, field, value)
	}
	if err := r.client.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to hset %q: %w", key, err)
	}
	return nil
}

// HashGetAll returns ErrCacheMiss when the hash is absent or empty.
func (r *RedisCache) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hgetall %q: %w", key, err)
	}
	if len(entries) == 0 {
		return nil, ErrCacheMiss
	}
	return entries, nil
}

// Increment atomically adds one and returns the new value.
func (r *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr %q: %w", key, err)
	}
	return value, nil
}

// Decrement atomically subtracts one and returns the new value.
func (r *RedisCache) Decrement(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decr %q: %w", key, err)
	}
	return value, nil
}

// Expire sets a ttl on key.
func (r *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire %q: %w", key, err)
	}
	return nil
}

// Ping checks that the server answers. Readiness uses it.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
