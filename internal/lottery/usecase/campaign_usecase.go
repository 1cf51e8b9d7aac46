package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/allisson/lottery/internal/cache"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// CampaignCacheConfig controls the two cache tiers in front of the campaign store.
type CampaignCacheConfig struct {
	// LocalTTL is how long a campaign stays in process memory.
	LocalTTL time.Duration
	// DefaultTTL is the shared cache retention for campaigns whose window already ended.
	DefaultTTL time.Duration
}

// campaignUseCase serves campaign reads from a two level cache in front of the store.
type campaignUseCase struct {
	campaignRepo CampaignRepository
	cache        cache.Cache
	local        *ttlcache.Cache[int64, domain.Campaign]
	cfg          CampaignCacheConfig
	logger       *slog.Logger
	now          func() time.Time
}

// NewCampaignUseCase returns a read-through campaign resolver. The shared cache
// tier is best-effort: failures fall back to the store.
func NewCampaignUseCase(
	campaignRepo CampaignRepository,
	c cache.Cache,
	cfg CampaignCacheConfig,
	logger *slog.Logger,
) CampaignUseCase {
	local := ttlcache.New[int64, domain.Campaign](
		ttlcache.WithTTL[int64, domain.Campaign](cfg.LocalTTL),
		ttlcache.WithDisableTouchOnHit[int64, domain.Campaign](),
	)

	return &campaignUseCase{
		campaignRepo: campaignRepo,
		cache:        c,
		local:        local,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Get looks the campaign up in the local cache, then the shared cache, then the
// database, filling the caches on the way back.
func (u *campaignUseCase) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	if item := u.local.Get(id); item != nil {
		campaign := item.Value()
		return &campaign, nil
	}

	if campaign, ok := u.getShared(ctx, id); ok {
		u.local.Set(id, *campaign, ttlcache.DefaultTTL)
		return campaign, nil
	}

	campaign, err := u.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.setShared(ctx, campaign)
	u.local.Set(id, *campaign, ttlcache.DefaultTTL)

	return campaign, nil
}

// Create validates the window and success target before storing campaign.
func (u *campaignUseCase) Create(ctx context.Context, campaign *domain.Campaign) error {
	if !campaign.EndUTC.After(campaign.StartUTC) {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "campaign end must be after its start")
	}
	if campaign.SuccessTarget < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "success target must not be negative")
	}

	campaign.StartUTC = campaign.StartUTC.UTC()
	campaign.EndUTC = campaign.EndUTC.UTC()

	return u.campaignRepo.Create(ctx, campaign)
}

// getShared reads the campaign from the shared cache. Misses and cache errors both
// report false so the caller falls through to the store.
func (u *campaignUseCase) getShared(ctx context.Context, id int64) (*domain.Campaign, bool) {
	raw, err := u.cache.GetString(ctx, domain.CampaignCacheKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			u.logger.Warn("campaign cache read failed", slog.Int64("campaign_id", id), slog.Any("error", err))
		}
		return nil, false
	}

	var campaign domain.Campaign
	if err := json.Unmarshal([]byte(raw), &campaign); err != nil {
		u.logger.Warn("campaign cache entry is corrupt", slog.Int64("campaign_id", id), slog.Any("error", err))
		return nil, false
	}
	return &campaign, true
}

// setShared caches campaign until its window closes, or for DefaultTTL once closed.
func (u *campaignUseCase) setShared(ctx context.Context, campaign *domain.Campaign) {
	ttl := campaign.Remaining(u.now())
	if ttl <= 0 {
		ttl = u.cfg.DefaultTTL
	}

	data, err := json.Marshal(campaign)
	if err != nil {
		return
	}

	if err := u.cache.SetString(ctx, domain.CampaignCacheKey(campaign.ID), string(data), ttl); err != nil {
		u.logger.Warn("campaign cache write failed", slog.Int64("campaign_id", campaign.ID), slog.Any("error", err))
	}
}
