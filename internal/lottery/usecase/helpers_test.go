package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/allisson/lottery/internal/cache"
	"github.com/allisson/lottery/internal/lottery/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c, mr
}

func newPending(createdAt time.Time) *domain.Registration {
	return &domain.Registration{
		RequestID:  uuid.Must(uuid.NewV7()),
		FirstName:  "Sara",
		LastName:   "Ahmadi",
		Phone:      "09121234567",
		NationalID: "0012345678",
		CampaignID: 1,
		Status:     domain.StatusPending,
		CreatedAt:  createdAt,
	}
}

func alwaysWin() bool  { return true }
func alwaysLose() bool { return false }

// lockingTxManager serializes transactions, standing in for row locks.
type lockingTxManager struct {
	mu sync.Mutex
}

func (m *lockingTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// memoryStore is an in-memory RegistrationRepository with the same guards as the SQL stores.
type memoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Registration

	// refuse fails a whole insert when it matches any row, the way a column that
	// cannot hold a value fails the statement.
	refuse func(reg domain.Registration) bool
	// failures makes that many BulkInsert calls fail before touching rows.
	failures    int
	insertCalls int
}

func newMemoryStore(regs ...*domain.Registration) *memoryStore {
	s := &memoryStore{rows: make(map[uuid.UUID]*domain.Registration)}
	for _, reg := range regs {
		cp := *reg
		s.rows[reg.RequestID] = &cp
	}
	return s
}

func (s *memoryStore) BulkInsert(ctx context.Context, regs []domain.Registration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	if s.failures > 0 {
		s.failures--
		return 0, errors.New("connection refused")
	}
	if s.refuse != nil {
		for _, reg := range regs {
			if s.refuse(reg) {
				return 0, fmt.Errorf("failed to bulk insert registrations: %w: %s",
					domain.ErrRegistrationRejected, reg.RequestID)
			}
		}
	}

	var inserted int64
	for _, reg := range regs {
		if _, ok := s.rows[reg.RequestID]; ok {
			continue
		}
		cp := reg
		s.rows[reg.RequestID] = &cp
		inserted++
	}
	return inserted, nil
}

func (s *memoryStore) GetPendingForUpdate(
	ctx context.Context,
	campaignID int64,
	limit int,
) ([]*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*domain.Registration
	for _, reg := range s.rows {
		if reg.CampaignID == campaignID && reg.Status == domain.StatusPending {
			cp := *reg
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memoryStore) MarkProcessing(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if reg, ok := s.rows[id]; ok && reg.Status == domain.StatusPending {
			reg.Status = domain.StatusProcessing
			t := at
			reg.ProcessedAt = &t
		}
	}
	return nil
}

func (s *memoryStore) RecoverStuck(ctx context.Context, campaignID int64, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recovered int64
	for _, reg := range s.rows {
		if reg.CampaignID == campaignID && reg.Status == domain.StatusProcessing &&
			reg.ProcessedAt != nil && reg.ProcessedAt.Before(cutoff) {
			reg.Status = domain.StatusPending
			reg.ProcessedAt = nil
			recovered++
		}
	}
	return recovered, nil
}

func (s *memoryStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
	claimedAt time.Time,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.rows[id]
	if !ok || reg.Status != domain.StatusProcessing || reg.ProcessedAt == nil || !reg.ProcessedAt.Equal(claimedAt) {
		return domain.ErrRegistrationNotProcessing
	}
	reg.Status = status
	t := at
	reg.ProcessedAt = &t
	return nil
}

func (s *memoryStore) GetByRequestID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (s *memoryStore) CountByStatus(ctx context.Context, campaignID int64, status domain.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, reg := range s.rows {
		if reg.CampaignID == campaignID && reg.Status == status {
			count++
		}
	}
	return count, nil
}

func hasNUL(reg domain.Registration) bool {
	return strings.ContainsRune(reg.FirstName+reg.LastName, 0)
}

// hasFourByteRune matches names a utf8mb3 column refuses with error 1366.
func hasFourByteRune(reg domain.Registration) bool {
	for _, r := range reg.FirstName + reg.LastName {
		if utf8.RuneLen(r) == 4 {
			return true
		}
	}
	return false
}

func (s *memoryStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCalls
}

func (s *memoryStore) status(id uuid.UUID) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

func (s *memoryStore) processedAt(id uuid.UUID) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].ProcessedAt
}

// setProcessedAt backdates a claim to simulate a crashed worker.
func (s *memoryStore) setProcessedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].ProcessedAt = &at
}
