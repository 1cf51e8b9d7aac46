package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/broker"
	"github.com/allisson/lottery/internal/cache"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// registrationUseCase accepts submissions and answers status lookups.
type registrationUseCase struct {
	registrationRepo RegistrationRepository
	campaigns        CampaignUseCase
	producer         broker.Producer
	cache            cache.Cache
	statusTTL        time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// NewRegistrationUseCase creates the intake and status use case.
func NewRegistrationUseCase(
	registrationRepo RegistrationRepository,
	campaigns CampaignUseCase,
	producer broker.Producer,
	c cache.Cache,
	statusTTL time.Duration,
	logger *slog.Logger,
) RegistrationUseCase {
	return &registrationUseCase{
		registrationRepo: registrationRepo,
		campaigns:        campaigns,
		producer:         producer,
		cache:            c,
		statusTTL:        statusTTL,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Register publishes an accepted submission to the log. The registration row is
// written later by ingestion.
func (u *registrationUseCase) Register(ctx context.Context, input RegisterInput) (uuid.UUID, error) {
	// An unknown campaign is reported as closed
	campaign, err := u.campaigns.Get(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return uuid.Nil, domain.ErrRegistrationClosed
		}
		return uuid.Nil, err
	}

	now := u.now()
	if !campaign.IsOpen(now) {
		return uuid.Nil, domain.ErrRegistrationClosed
	}

	// Request ids are time-ordered
	requestID, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to generate request id")
	}

	req := domain.EnqueueRequest{
		RequestID:  requestID,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Phone:      input.Phone,
		NationalID: input.NationalCode,
		CampaignID: campaign.ID,
		Status:     domain.StatusPending,
		CreatedAt:  now,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to encode registration")
	}

	// Keyed by request id
	if err := u.producer.Publish(ctx, []byte(requestID.String()), payload); err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.ErrUnavailable, err.Error())
	}

	u.projectPending(ctx, req)

	return requestID, nil
}

// GetStatus prefers the store and falls back to the cached projection for
// submissions that ingestion has not stored yet.
func (u *registrationUseCase) GetStatus(ctx context.Context, requestID uuid.UUID) (*StatusView, error) {
	reg, storeErr := u.registrationRepo.GetByRequestID(ctx, requestID)
	if storeErr == nil {
		return &StatusView{
			RequestID:   reg.RequestID,
			Status:      reg.Status,
			ProcessedAt: reg.ProcessedAt,
		}, nil
	}
	if !errors.Is(storeErr, domain.ErrRegistrationNotFound) {
		u.logger.Warn("status store lookup failed, trying cache",
			slog.String("request_id", requestID.String()),
			slog.Any("error", storeErr),
		)
	}

	// Not stored yet, or the store is down
	view, err := u.cachedStatus(ctx, requestID)
	if err == nil {
		return view, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		u.logger.Warn("status cache lookup failed",
			slog.String("request_id", requestID.String()),
			slog.Any("error", err),
		)
	}

	if errors.Is(storeErr, domain.ErrRegistrationNotFound) {
		return nil, domain.ErrRegistrationNotFound
	}
	return nil, storeErr
}

// cachedStatus builds a StatusView from the status hash when the store has no row.
func (u *registrationUseCase) cachedStatus(ctx context.Context, requestID uuid.UUID) (*StatusView, error) {
	entries, err := u.cache.HashGetAll(ctx, domain.StatusCacheKey(requestID))
	if err != nil {
		return nil, err
	}

	status, err := domain.ParseStatus(entries[domain.StatusFieldStatus])
	if err != nil {
		return nil, err
	}

	return &StatusView{
		RequestID:   requestID,
		Status:      status,
		CreatedAt:   parseCachedTime(entries[domain.StatusFieldCreatedAt]),
		ProcessedAt: parseCachedTime(entries[domain.StatusFieldProcessedAt]),
		FromCache:   true,
	}, nil
}

// projectPending seeds the status hash so a status lookup succeeds before ingestion.
func (u *registrationUseCase) projectPending(ctx context.Context, req domain.EnqueueRequest) {
	key := domain.StatusCacheKey(req.RequestID)
	entries := map[string]string{
		domain.StatusFieldStatus:    req.Status.String(),
		domain.StatusFieldCreatedAt: req.CreatedAt.Format(time.RFC3339Nano),
	}

	if err := u.cache.HashSetAll(ctx, key, entries); err != nil {
		u.logger.Warn("status cache write failed", slog.String("request_id", req.RequestID.String()), slog.Any("error", err))
		return
	}
	if err := u.cache.Expire(ctx, key, u.statusTTL); err != nil {
		u.logger.Warn("status cache expire failed", slog.String("request_id", req.RequestID.String()), slog.Any("error", err))
	}
}

// parseCachedTime parses an RFC3339 timestamp from the status hash. Empty or
// unparsable values yield nil.
func parseCachedTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &t
}
