// Package mocks provides mock implementations of database interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager.
type MockTxManager struct {
	mock.Mock
}

// WithTx records the call and, unless the expectation returns an error, runs fn
// with the given context.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
