// Package mocks provides mock implementations of the lottery use case dependencies.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/lottery/internal/lottery/domain"
)

// MockRegistrationRepository is a mock implementation of RegistrationRepository.
type MockRegistrationRepository struct {
	mock.Mock
}

// BulkInsert mocks the BulkInsert method of RegistrationRepository.
func (m *MockRegistrationRepository) BulkInsert(ctx context.Context, regs []domain.Registration) (int64, error) {
	args := m.Called(ctx, regs)
	return args.Get(0).(int64), args.Error(1)
}

// GetPendingForUpdate mocks the GetPendingForUpdate method of RegistrationRepository.
func (m *MockRegistrationRepository) GetPendingForUpdate(
	ctx context.Context,
	campaignID int64,
	limit int,
) ([]*domain.Registration, error) {
	args := m.Called(ctx, campaignID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Registration), args.Error(1)
}

// MarkProcessing mocks the MarkProcessing method of RegistrationRepository.
func (m *MockRegistrationRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

// RecoverStuck mocks the RecoverStuck method of RegistrationRepository.
func (m *MockRegistrationRepository) RecoverStuck(
	ctx context.Context,
	campaignID int64,
	cutoff time.Time,
) (int64, error) {
	args := m.Called(ctx, campaignID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method of RegistrationRepository.
func (m *MockRegistrationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
	claimedAt time.Time,
	at time.Time,
) error {
	args := m.Called(ctx, id, status, claimedAt, at)
	return args.Error(0)
}

// GetByRequestID mocks the GetByRequestID method of RegistrationRepository.
func (m *MockRegistrationRepository) GetByRequestID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Registration), args.Error(1)
}

// CountByStatus mocks the CountByStatus method of RegistrationRepository.
func (m *MockRegistrationRepository) CountByStatus(
	ctx context.Context,
	campaignID int64,
	status domain.Status,
) (int64, error) {
	args := m.Called(ctx, campaignID, status)
	return args.Get(0).(int64), args.Error(1)
}

// MockCampaignRepository is a mock implementation of CampaignRepository.
type MockCampaignRepository struct {
	mock.Mock
}

// Create mocks the Create method of CampaignRepository.
func (m *MockCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

// GetByID mocks the GetByID method of CampaignRepository.
func (m *MockCampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

// MockCampaignUseCase is a mock implementation of CampaignUseCase.
type MockCampaignUseCase struct {
	mock.Mock
}

// Get mocks the Get method of CampaignUseCase.
func (m *MockCampaignUseCase) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

// Create mocks the Create method of CampaignUseCase.
func (m *MockCampaignUseCase) Create(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

// MockDecisionStep is a mock implementation of DecisionStep.
type MockDecisionStep struct {
	mock.Mock
}

// Perform mocks the Perform method of DecisionStep.
func (m *MockDecisionStep) Perform(ctx context.Context, reg *domain.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}
