package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockCache is a mock implementation of cache.Cache.
type MockCache struct {
	mock.Mock
}

// SetString mocks the SetString method of Cache.
func (m *MockCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// GetString mocks the GetString method of Cache.
func (m *MockCache) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// HashSetAll mocks the HashSetAll method of Cache.
func (m *MockCache) HashSetAll(ctx context.Context, key string, entries map[string]string) error {
	args := m.Called(ctx, key, entries)
	return args.Error(0)
}

// HashGetAll mocks the HashGetAll method of Cache.
func (m *MockCache) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// Increment mocks the Increment method of Cache.
func (m *MockCache) Increment(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

// Decrement mocks the Decrement method of Cache.
func (m *MockCache) Decrement(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

// Expire mocks the Expire method of Cache.
func (m *MockCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	args := m.Called(ctx, key, ttl)
	return args.Error(0)
}

// Ping mocks the Ping method of Cache.
func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks the Close method of Cache.
func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
