package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/allisson/lottery/internal/cache"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// Coin draws the potential-winner flag for one registration.
type Coin func() bool

// FairCoin returns true with probability one half.
func FairCoin() bool {
	return rand.IntN(2) == 0
}

// QuotaGuard bounds the number of winners with an atomic counter in the cache.
// No lock is held: a contender that overshoots the limit gives its slot back.
type QuotaGuard struct {
	cache cache.Cache
	key   string
	limit int64
}

// NewQuotaGuard returns a guard for the counter stored at key.
func NewQuotaGuard(c cache.Cache, key string, limit int64) *QuotaGuard {
	return &QuotaGuard{cache: c, key: key, limit: limit}
}

// TryAcquire claims one winner slot. It returns false once limit slots are taken.
func (q *QuotaGuard) TryAcquire(ctx context.Context) (bool, error) {
	value, err := q.cache.Increment(ctx, q.key)
	if err != nil {
		return false, fmt.Errorf("failed to increment winner counter: %w", err)
	}
	if value <= q.limit {
		return true, nil
	}

	if _, err := q.cache.Decrement(ctx, q.key); err != nil {
		return false, fmt.Errorf("failed to release overflow slot: %w", err)
	}
	return false, nil
}

// Decide runs the quota protocol: losers of the coin never touch the counter,
// potential winners succeed only while a slot is available.
func (q *QuotaGuard) Decide(ctx context.Context, coin Coin) (domain.Status, error) {
	if !coin() {
		return domain.StatusFailed, nil
	}

	won, err := q.TryAcquire(ctx)
	if err != nil {
		return domain.StatusFailed, err
	}
	if won {
		return domain.StatusSuccess, nil
	}
	return domain.StatusFailed, nil
}

// Count returns the current counter value, zero when it was never written.
func (q *QuotaGuard) Count(ctx context.Context) (int64, error) {
	raw, err := q.cache.GetString(ctx, q.key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("winner counter holds %q: %w", raw, err)
	}
	return value, nil
}
