package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockIngestUseCase is a mock implementation of IngestUseCase.
type MockIngestUseCase struct {
	mock.Mock
}

// Run mocks the Run method of IngestUseCase.
func (m *MockIngestUseCase) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockProcessorUseCase is a mock implementation of ProcessorUseCase.
type MockProcessorUseCase struct {
	mock.Mock
}

// Run mocks the Run method of ProcessorUseCase.
func (m *MockProcessorUseCase) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// RunCycle mocks the RunCycle method of ProcessorUseCase.
func (m *MockProcessorUseCase) RunCycle(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// RecoverStuck mocks the RecoverStuck method of ProcessorUseCase.
func (m *MockProcessorUseCase) RecoverStuck(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
