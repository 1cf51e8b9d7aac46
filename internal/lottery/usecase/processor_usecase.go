package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/lottery/internal/cache"
	"github.com/allisson/lottery/internal/database"
	"github.com/allisson/lottery/internal/lottery/domain"
	"github.com/allisson/lottery/internal/metrics"
)

const processorDomain = "processor"

// ProcessorConfig holds the worker settings for one campaign.
type ProcessorConfig struct {
	CampaignID     int64
	BatchSize      int
	PollInterval   time.Duration
	WinnerLimit    int64
	MaxParallelism int
	CounterKey     string
	StuckThreshold time.Duration
	ErrorDelay     time.Duration
	StatusTTL      time.Duration
	// PersistTimeout bounds decision writes, which are not cancelled with the loop.
	PersistTimeout time.Duration
}

// processorUseCase claims Pending registrations of one campaign and decides them.
type processorUseCase struct {
	txManager        database.TxManager
	registrationRepo RegistrationRepository
	cache            cache.Cache
	quota            *QuotaGuard
	step             DecisionStep
	coin             Coin
	metrics          metrics.BusinessMetrics
	logger           *slog.Logger
	cfg              ProcessorConfig
	now              func() time.Time
}

// NewProcessorUseCase creates the claim-and-process worker.
func NewProcessorUseCase(
	txManager database.TxManager,
	registrationRepo RegistrationRepository,
	c cache.Cache,
	step DecisionStep,
	coin Coin,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	cfg ProcessorConfig,
) ProcessorUseCase {
	if cfg.MaxParallelism < 1 {
		cfg.MaxParallelism = 1
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	if coin == nil {
		coin = FairCoin
	}

	return &processorUseCase{
		txManager:        txManager,
		registrationRepo: registrationRepo,
		cache:            c,
		quota:            NewQuotaGuard(c, cfg.CounterKey, cfg.WinnerLimit),
		step:             step,
		coin:             coin,
		metrics:          businessMetrics,
		logger:           logger,
		cfg:              cfg,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is done. Cycle failures are logged and retried after ErrorDelay.
func (u *processorUseCase) Run(ctx context.Context) error {
	u.logger.Info("registration processor started",
		slog.Int64("campaign_id", u.cfg.CampaignID),
		slog.Int("batch_size", u.cfg.BatchSize),
		slog.Int("max_parallelism", u.cfg.MaxParallelism),
		slog.Int64("winner_limit", u.cfg.WinnerLimit),
	)

	for {
		delay := u.cfg.PollInterval

		if _, err := u.RunCycle(ctx); err != nil && ctx.Err() == nil {
			u.logger.Error("processor cycle failed", slog.Any("error", err))
			delay = u.cfg.ErrorDelay
		}

		select {
		case <-ctx.Done():
			u.logger.Info("registration processor stopped")
			return nil
		case <-time.After(delay):
		}
	}
}

// RunCycle performs one recovery sweep, one claim and the decisions for the claimed
// batch. It returns the number of registrations claimed.
func (u *processorUseCase) RunCycle(ctx context.Context) (int, error) {
	// Recovered rows are claimable in the same cycle
	if _, err := u.RecoverStuck(ctx); err != nil {
		return 0, err
	}

	claimed, err := u.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	u.logger.Info("claimed registrations", slog.Int("count", len(claimed)))

	// At most MaxParallelism decisions in flight
	var g errgroup.Group
	g.SetLimit(u.cfg.MaxParallelism)
	for _, reg := range claimed {
		g.Go(func() error {
			u.process(ctx, reg)
			return nil
		})
	}
	_ = g.Wait()

	return len(claimed), nil
}

// RecoverStuck returns registrations left Processing past the stuck threshold to Pending.
func (u *processorUseCase) RecoverStuck(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := u.now().Add(-u.cfg.StuckThreshold)

	recovered, err := u.registrationRepo.RecoverStuck(ctx, u.cfg.CampaignID, cutoff)
	u.record(ctx, "recover_stuck", start, err, int(recovered))
	if err != nil {
		return 0, err
	}

	if recovered > 0 {
		u.logger.Warn("recovered stuck registrations",
			slog.Int64("campaign_id", u.cfg.CampaignID),
			slog.Int64("count", recovered),
		)
	}
	return recovered, nil
}

// claim atomically selects and marks the oldest Pending registrations.
func (u *processorUseCase) claim(ctx context.Context) ([]*domain.Registration, error) {
	start := time.Now()
	var claimed []*domain.Registration

	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		regs, err := u.registrationRepo.GetPendingForUpdate(ctx, u.cfg.CampaignID, u.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(regs) == 0 {
			return nil
		}

		// The store keeps microseconds; the terminal write matches on this value.
		now := u.now().Truncate(time.Microsecond)
		ids := make([]uuid.UUID, len(regs))
		for i, reg := range regs {
			ids[i] = reg.RequestID
			reg.Status = domain.StatusProcessing
			reg.ProcessedAt = &now
		}

		if err := u.registrationRepo.MarkProcessing(ctx, ids, now); err != nil {
			return err
		}
		claimed = regs
		return nil
	})

	u.record(ctx, "claim", start, err, len(claimed))
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// process decides one claimed registration. Failures never escape: the item is
// marked Failed when possible and otherwise left for the recovery sweep.
func (u *processorUseCase) process(ctx context.Context, reg *domain.Registration) {
	start := time.Now()
	logger := u.logger.With(slog.String("request_id", reg.RequestID.String()))

	if err := u.step.Perform(ctx, reg); err != nil {
		if ctx.Err() != nil {
			logger.Info("decision interrupted, left for recovery")
			return
		}
		u.fail(ctx, logger, reg, err)
		return
	}

	// Once the step completed the decision is carried through even if ctx is cancelled.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.PersistTimeout)
	defer cancel()

	// Win only if the coin says so and a winner slot is left
	status, err := u.quota.Decide(persistCtx, u.coin)
	if err != nil {
		u.fail(ctx, logger, reg, err)
		return
	}

	processedAt := u.now()
	err = u.registrationRepo.UpdateStatus(persistCtx, reg.RequestID, status, claimedAt(reg), processedAt)
	if err != nil {
		if status == domain.StatusSuccess {
			logger.Error("winner decided but not persisted, counter may overcount", slog.Any("error", err))
		}
		u.fail(ctx, logger, reg, err)
		return
	}

	reg.Status = status
	reg.ProcessedAt = &processedAt
	u.project(persistCtx, logger, reg)

	u.metrics.RecordOperation(ctx, processorDomain, "decide", status.String())
	u.metrics.RecordDuration(ctx, processorDomain, "decide", time.Since(start), status.String())

	logger.Info("registration processed", slog.String("status", status.String()))
}

// fail marks reg Failed on a best-effort basis.
func (u *processorUseCase) fail(ctx context.Context, logger *slog.Logger, reg *domain.Registration, cause error) {
	logger.Error("failed to process registration", slog.Any("error", cause))
	u.metrics.RecordOperation(ctx, processorDomain, "decide", metrics.StatusError)

	// Same detached deadline as a successful decision
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.PersistTimeout)
	defer cancel()

	processedAt := u.now()
	err := u.registrationRepo.UpdateStatus(failCtx, reg.RequestID, domain.StatusFailed, claimedAt(reg), processedAt)
	if err != nil {
		logger.Warn("failed to mark registration failed", slog.Any("error", err))
		return
	}

	reg.Status = domain.StatusFailed
	reg.ProcessedAt = &processedAt
	u.project(failCtx, logger, reg)
}

// claimedAt is the processed_at value written by the claim that handed reg to
// this worker. A recovered and reclaimed row carries a different one.
func claimedAt(reg *domain.Registration) time.Time {
	if reg.ProcessedAt == nil {
		return time.Time{}
	}
	return *reg.ProcessedAt
}

// project writes the status hash. Cache failures are logged only.
func (u *processorUseCase) project(ctx context.Context, logger *slog.Logger, reg *domain.Registration) {
	key := domain.StatusCacheKey(reg.RequestID)

	entries := map[string]string{
		domain.StatusFieldStatus:      reg.Status.String(),
		domain.StatusFieldProcessedAt: reg.ProcessedAt.Format(time.RFC3339Nano),
	}
	if err := u.cache.HashSetAll(ctx, key, entries); err != nil {
		logger.Warn("status cache write failed", slog.Any("error", err))
		return
	}
	if err := u.cache.Expire(ctx, key, u.cfg.StatusTTL); err != nil {
		logger.Warn("status cache expire failed", slog.Any("error", err))
	}
}

// record emits the operation, duration and item metrics for one worker step.
func (u *processorUseCase) record(ctx context.Context, operation string, start time.Time, err error, items int) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	u.metrics.RecordOperation(ctx, processorDomain, operation, status)
	u.metrics.RecordDuration(ctx, processorDomain, operation, time.Since(start), status)
	u.metrics.RecordItems(ctx, processorDomain, operation, status, items)
}

// delayDecisionStep stands in for the external call made before each draw.
type delayDecisionStep struct {
	delay time.Duration
}

// NewDelayDecisionStep returns a DecisionStep that waits for delay or until ctx is done.
func NewDelayDecisionStep(delay time.Duration) DecisionStep {
	return &delayDecisionStep{delay: delay}
}

// Perform sleeps for the configured delay. It returns ctx.Err() if ctx ends first.
func (s *delayDecisionStep) Perform(ctx context.Context, reg *domain.Registration) error {
	if s.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
