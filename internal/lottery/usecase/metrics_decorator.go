package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/metrics"
)

// registrationUseCaseWithMetrics decorates RegistrationUseCase with metrics instrumentation.
type registrationUseCaseWithMetrics struct {
	next    RegistrationUseCase
	metrics metrics.BusinessMetrics
}

// NewRegistrationUseCaseWithMetrics wraps a RegistrationUseCase with metrics recording.
func NewRegistrationUseCaseWithMetrics(useCase RegistrationUseCase, m metrics.BusinessMetrics) RegistrationUseCase {
	return &registrationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Register records metrics for submissions.
func (r *registrationUseCaseWithMetrics) Register(ctx context.Context, input RegisterInput) (uuid.UUID, error) {
	start := time.Now()
	requestID, err := r.next.Register(ctx, input)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}

	r.metrics.RecordOperation(ctx, "registration", "register", status)
	r.metrics.RecordDuration(ctx, "registration", "register", time.Since(start), status)

	return requestID, err
}

// GetStatus records metrics for status lookups.
func (r *registrationUseCaseWithMetrics) GetStatus(ctx context.Context, requestID uuid.UUID) (*StatusView, error) {
	start := time.Now()
	view, err := r.next.GetStatus(ctx, requestID)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}

	r.metrics.RecordOperation(ctx, "registration", "status_get", status)
	r.metrics.RecordDuration(ctx, "registration", "status_get", time.Since(start), status)

	return view, err
}
