// Package usecase implements the lottery pipeline: submission intake, log ingestion
// into the registration store, and the claim-and-process worker that decides each
// registration under the winner quota.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/lottery/domain"
)

// RegistrationRepository defines the registration store operations.
type RegistrationRepository interface {
	BulkInsert(ctx context.Context, regs []domain.Registration) (int64, error)
	GetPendingForUpdate(ctx context.Context, campaignID int64, limit int) ([]*domain.Registration, error)
	MarkProcessing(ctx context.Context, ids []uuid.UUID, at time.Time) error
	RecoverStuck(ctx context.Context, campaignID int64, cutoff time.Time) (int64, error)
	// UpdateStatus records a terminal status only while the row is still Processing
	// under the claim made at claimedAt. Otherwise it returns
	// domain.ErrRegistrationNotProcessing.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, claimedAt, at time.Time) error
	GetByRequestID(ctx context.Context, id uuid.UUID) (*domain.Registration, error)
	CountByStatus(ctx context.Context, campaignID int64, status domain.Status) (int64, error)
}

// CampaignRepository defines the campaign store operations.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
}

// CampaignUseCase resolves campaigns through the local and shared caches.
type CampaignUseCase interface {
	Get(ctx context.Context, id int64) (*domain.Campaign, error)
	Create(ctx context.Context, campaign *domain.Campaign) error
}

// RegisterInput carries a validated submission.
type RegisterInput struct {
	FirstName    string
	LastName     string
	Phone        string
	NationalCode string
	CampaignID   int64
}

// StatusView is what the status endpoint returns. FromCache marks a projection
// read from the status hash because the store has no row yet.
type StatusView struct {
	RequestID   uuid.UUID
	Status      domain.Status
	CreatedAt   *time.Time
	ProcessedAt *time.Time
	FromCache   bool
}

// RegistrationUseCase handles submission intake and status lookups.
type RegistrationUseCase interface {
	Register(ctx context.Context, input RegisterInput) (uuid.UUID, error)
	GetStatus(ctx context.Context, requestID uuid.UUID) (*StatusView, error)
}

// IngestUseCase consumes the submission log into the registration store until ctx is done.
type IngestUseCase interface {
	Run(ctx context.Context) error
}

// ProcessorUseCase drives Pending registrations to a terminal state.
type ProcessorUseCase interface {
	Run(ctx context.Context) error
	RunCycle(ctx context.Context) (int, error)
	RecoverStuck(ctx context.Context) (int64, error)
}

// DecisionStep is the external work performed for each claimed registration
// before the outcome is drawn.
type DecisionStep interface {
	Perform(ctx context.Context, reg *domain.Registration) error
}
