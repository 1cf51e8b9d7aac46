package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/lottery/internal/broker"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
	"github.com/allisson/lottery/internal/metrics"
)

const ingestDomain = "ingest"

// IngestConfig holds the micro-batching settings.
type IngestConfig struct {
	// QueueCapacity bounds the queue between the pull and drain stages.
	QueueCapacity int
	// BatchSize flushes as soon as this many messages are buffered.
	BatchSize int
	// FlushInterval flushes a partial batch this long after the previous flush.
	FlushInterval time.Duration
	// RetryDelay is the pause between attempts to persist a failed batch.
	RetryDelay time.Duration
	// FetchErrorDelay is the pause after a failed read from the log.
	FetchErrorDelay time.Duration
	// FinalFlushTimeout bounds the flush performed on shutdown.
	FinalFlushTimeout time.Duration
}

// ingestUseCase moves submissions from the log into the registration store.
type ingestUseCase struct {
	consumer         broker.Consumer
	registrationRepo RegistrationRepository
	campaigns        CampaignUseCase
	deadLetter       broker.DeadLetterSink
	metrics          metrics.BusinessMetrics
	logger           *slog.Logger
	cfg              IngestConfig
}

// NewIngestUseCase creates the ingestion subsystem reading from consumer.
func NewIngestUseCase(
	consumer broker.Consumer,
	registrationRepo RegistrationRepository,
	campaigns CampaignUseCase,
	deadLetter broker.DeadLetterSink,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
	cfg IngestConfig,
) IngestUseCase {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FetchErrorDelay <= 0 {
		cfg.FetchErrorDelay = time.Second
	}
	if cfg.FinalFlushTimeout <= 0 {
		cfg.FinalFlushTimeout = 30 * time.Second
	}

	return &ingestUseCase{
		consumer:         consumer,
		registrationRepo: registrationRepo,
		campaigns:        campaigns,
		deadLetter:       deadLetter,
		metrics:          businessMetrics,
		logger:           logger,
		cfg:              cfg,
	}
}

// Run pulls messages into a bounded queue and drains it in micro-batches. When ctx
// is done it stops pulling, flushes whatever is queued and returns.
func (u *ingestUseCase) Run(ctx context.Context) error {
	u.logger.Info("ingestion started",
		slog.Int("queue_capacity", u.cfg.QueueCapacity),
		slog.Int("batch_size", u.cfg.BatchSize),
		slog.Duration("flush_interval", u.cfg.FlushInterval),
	)

	queue := make(chan broker.Message, u.cfg.QueueCapacity)

	var g errgroup.Group
	g.Go(func() error {
		u.pull(ctx, queue)
		return nil
	})
	g.Go(func() error {
		u.drain(ctx, queue)
		return nil
	})
	err := g.Wait()

	u.logger.Info("ingestion stopped")
	return err
}

// pull blocks on a full queue instead of dropping. It closes queue when it returns.
func (u *ingestUseCase) pull(ctx context.Context, queue chan<- broker.Message) {
	defer close(queue)

	for {
		msg, err := u.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, broker.ErrClosed) {
				return
			}
			u.logger.Error("failed to fetch message", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(u.cfg.FetchErrorDelay):
			}
			continue
		}

		select {
		case queue <- msg:
		case <-ctx.Done():
			// Not committed, so the log redelivers it.
			return
		}
	}
}

// drain collects messages into a batch and flushes it when BatchSize is reached or
// FlushInterval elapses. It flushes the rest and returns when the queue is closed
// or ctx is done.
func (u *ingestUseCase) drain(ctx context.Context, queue <-chan broker.Message) {
	batch := make([]broker.Message, 0, u.cfg.BatchSize)

	timer := time.NewTimer(u.cfg.FlushInterval)
	defer timer.Stop()

	flush := func() {
		if len(batch) > 0 && u.flushWithRetry(ctx, batch) {
			batch = batch[:0]
		}
		timer.Reset(u.cfg.FlushInterval)
	}

	for {
		if ctx.Err() != nil {
			for msg := range queue {
				batch = append(batch, msg)
			}
			u.finalFlush(ctx, batch)
			return
		}

		select {
		case msg, ok := <-queue:
			if !ok {
				u.finalFlush(ctx, batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= u.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

// pendingBatch is a decoded batch waiting to be stored. Rows move from regs to
// rejected when the store refuses them, so a retry never inserts them again.
type pendingBatch struct {
	msgs     []broker.Message
	regs     []domain.Registration
	regMsgs  []broker.Message
	rejected []rejection
}

// rejection is a message that will be committed without a stored row.
type rejection struct {
	msg    broker.Message
	reason error
}

// flushWithRetry keeps the drain stage on this batch until it is stored, so the
// queue fills and the pull stage stops. It gives up only when ctx is done. The
// batch is decoded once; only storing and committing are retried.
func (u *ingestUseCase) flushWithRetry(ctx context.Context, batch []broker.Message) bool {
	var pending *pendingBatch
	for {
		var err error
		if pending == nil {
			pending, err = u.prepare(ctx, batch)
		}
		if err == nil {
			err = u.store(ctx, pending)
		}
		if err == nil {
			u.sendDeadLetters(ctx, pending.rejected)
			return true
		}

		u.logger.Error("batch flush failed, will retry",
			slog.Int("batch_size", len(batch)),
			slog.Duration("retry_delay", u.cfg.RetryDelay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(u.cfg.RetryDelay):
		}
	}
}

// finalFlush stores what is left in BatchSize chunks. It stops at the first failure
// so no later offset is committed past an unstored message.
func (u *ingestUseCase) finalFlush(ctx context.Context, batch []broker.Message) {
	if len(batch) == 0 {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.FinalFlushTimeout)
	defer cancel()

	u.logger.Info("final flush", slog.Int("pending", len(batch)))

	for start := 0; start < len(batch); start += u.cfg.BatchSize {
		end := min(start+u.cfg.BatchSize, len(batch))
		if err := u.flushOnce(flushCtx, batch[start:end]); err != nil {
			u.logger.Error("final flush failed, remaining messages will be redelivered",
				slog.Int("unflushed", len(batch)-start),
				slog.Any("error", err),
			)
			return
		}
	}
}

// flushOnce is a single flush attempt used on shutdown, where there is no time to retry.
func (u *ingestUseCase) flushOnce(ctx context.Context, batch []broker.Message) error {
	pending, err := u.prepare(ctx, batch)
	if err != nil {
		return err
	}
	if err := u.store(ctx, pending); err != nil {
		return err
	}
	u.sendDeadLetters(ctx, pending.rejected)
	return nil
}

// prepare decodes each message on its own. Messages that can never be stored are
// set aside as rejections; any other failure fails the whole batch.
func (u *ingestUseCase) prepare(ctx context.Context, batch []broker.Message) (*pendingBatch, error) {
	pending := &pendingBatch{
		msgs:    batch,
		regs:    make([]domain.Registration, 0, len(batch)),
		regMsgs: make([]broker.Message, 0, len(batch)),
	}
	known := make(map[int64]bool)

	for _, msg := range batch {
		reg, err := u.decode(ctx, msg, known)
		if err != nil {
			if !errors.Is(err, domain.ErrMalformedPayload) && !errors.Is(err, domain.ErrCampaignNotFound) {
				return nil, err
			}
			pending.rejected = append(pending.rejected, rejection{msg: msg, reason: err})
			continue
		}
		pending.regs = append(pending.regs, reg)
		pending.regMsgs = append(pending.regMsgs, msg)
	}

	return pending, nil
}

// store inserts the decoded rows and commits every message of the batch after the
// insert succeeds.
func (u *ingestUseCase) store(ctx context.Context, pending *pendingBatch) error {
	start := time.Now()

	inserted, err := u.insert(ctx, pending)
	if err != nil {
		u.recordFlush(ctx, start, err, 0)
		return err
	}

	if err := u.consumer.Commit(ctx, pending.msgs...); err != nil {
		u.recordFlush(ctx, start, err, 0)
		return apperrors.Wrap(err, "failed to commit offsets")
	}

	u.recordFlush(ctx, start, nil, int(inserted))

	u.logger.Info("batch flushed",
		slog.Int("messages", len(pending.msgs)),
		slog.Int64("inserted", inserted),
		slog.Int("duplicates", len(pending.regs)-int(inserted)),
		slog.Int("rejected", len(pending.rejected)),
	)
	return nil
}

// insert writes the batch in one statement. When the store refuses a row for its
// data, the batch is written row by row and the refused rows become rejections.
func (u *ingestUseCase) insert(ctx context.Context, pending *pendingBatch) (int64, error) {
	if len(pending.regs) == 0 {
		return 0, nil
	}

	inserted, err := u.registrationRepo.BulkInsert(ctx, pending.regs)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, domain.ErrRegistrationRejected) {
		return 0, err
	}

	u.logger.Warn("bulk insert refused by store, inserting row by row",
		slog.Int("rows", len(pending.regs)),
		slog.Any("error", err),
	)

	regs := make([]domain.Registration, 0, len(pending.regs))
	regMsgs := make([]broker.Message, 0, len(pending.regMsgs))
	inserted = 0

	for i, reg := range pending.regs {
		n, err := u.registrationRepo.BulkInsert(ctx, []domain.Registration{reg})
		switch {
		case err == nil:
			inserted += n
			regs = append(regs, reg)
			regMsgs = append(regMsgs, pending.regMsgs[i])
		case errors.Is(err, domain.ErrRegistrationRejected):
			pending.rejected = append(pending.rejected, rejection{msg: pending.regMsgs[i], reason: err})
		default:
			// Keep the remaining rows for the retry; stored ones are ignored as duplicates.
			pending.regs = append(regs, pending.regs[i:]...)
			pending.regMsgs = append(regMsgs, pending.regMsgs[i:]...)
			return 0, err
		}
	}

	pending.regs = regs
	pending.regMsgs = regMsgs
	return inserted, nil
}

// decode returns domain.ErrMalformedPayload or domain.ErrCampaignNotFound for
// messages that can never be stored. Any other error is transient.
func (u *ingestUseCase) decode(
	ctx context.Context,
	msg broker.Message,
	known map[int64]bool,
) (domain.Registration, error) {
	var req domain.EnqueueRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return domain.Registration{}, apperrors.Wrap(domain.ErrMalformedPayload, err.Error())
	}
	if err := req.Validate(); err != nil {
		return domain.Registration{}, err
	}

	exists, checked := known[req.CampaignID]
	if !checked {
		_, err := u.campaigns.Get(ctx, req.CampaignID)
		switch {
		case err == nil:
			exists = true
		case errors.Is(err, domain.ErrCampaignNotFound):
			exists = false
		default:
			return domain.Registration{}, err
		}
		known[req.CampaignID] = exists
	}
	if !exists {
		return domain.Registration{}, domain.ErrCampaignNotFound
	}

	return req.ToRegistration(), nil
}

// sendDeadLetters runs once per batch, after its offsets are committed.
func (u *ingestUseCase) sendDeadLetters(ctx context.Context, rejected []rejection) {
	if len(rejected) == 0 {
		return
	}

	for _, r := range rejected {
		u.logger.Warn("dropping message that cannot be stored",
			slog.Int("partition", r.msg.Partition),
			slog.Int64("offset", r.msg.Offset),
			slog.Any("error", r.reason),
		)
		if err := u.deadLetter.Send(ctx, r.msg, r.reason); err != nil {
			u.logger.Error("dead letter delivery failed", slog.Int64("offset", r.msg.Offset), slog.Any("error", err))
		}
	}
	u.metrics.RecordItems(ctx, ingestDomain, "dead_letter", metrics.StatusSuccess, len(rejected))
}

// recordFlush records the operation count, latency and item count of one flush attempt.
func (u *ingestUseCase) recordFlush(ctx context.Context, start time.Time, err error, items int) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	u.metrics.RecordOperation(ctx, ingestDomain, "flush", status)
	u.metrics.RecordDuration(ctx, ingestDomain, "flush", time.Since(start), status)
	u.metrics.RecordItems(ctx, ingestDomain, "flush", status, items)
}
