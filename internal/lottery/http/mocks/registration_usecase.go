// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
)

// MockRegistrationUseCase is a mock implementation of RegistrationUseCase for testing.
type MockRegistrationUseCase struct {
	mock.Mock
}

// Register mocks the Register method of RegistrationUseCase.
func (m *MockRegistrationUseCase) Register(ctx context.Context, input lotteryUseCase.RegisterInput) (uuid.UUID, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// GetStatus mocks the GetStatus method of RegistrationUseCase.
func (m *MockRegistrationUseCase) GetStatus(
	ctx context.Context,
	requestID uuid.UUID,
) (*lotteryUseCase.StatusView, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lotteryUseCase.StatusView), args.Error(1)
}
