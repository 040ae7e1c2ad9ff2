package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	"MarketBrief/internal/services/curation"
	"MarketBrief/pkg/cache"
	applogger "MarketBrief/pkg/logger"
)

const snapshotCachePrefix = "snapshot"

// CurateUseCase runs the curation pipeline against an asset store.
type CurateUseCase struct {
	store        domrepo.AssetStore
	metrics      domrepo.Metrics
	cache        cache.Service
	cacheTTL     time.Duration
	l            *applogger.Logger
	defaultLimit int
	maxLimit     int
	maxAgeMin    int
	timeout      time.Duration
	now          func() time.Time
}

type CurateOption func(*CurateUseCase)

func WithDefaultLimit(n int) CurateOption {
	return func(uc *CurateUseCase) {
		if n > 0 {
			uc.defaultLimit = n
		}
	}
}

// WithMaxLimit rejects larger limits; 0 disables the cap.
func WithMaxLimit(n int) CurateOption {
	return func(uc *CurateUseCase) { uc.maxLimit = n }
}

func WithFreshnessWindow(minutes int) CurateOption {
	return func(uc *CurateUseCase) {
		if minutes > 0 {
			uc.maxAgeMin = minutes
		}
	}
}

func WithCurateTimeout(d time.Duration) CurateOption {
	return func(uc *CurateUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

// WithSnapshotCache caches live snapshots (no AsOf) for at most ttl, and
// never past the moment one of their assets leaves the freshness window.
func WithSnapshotCache(c cache.Service, ttl time.Duration) CurateOption {
	return func(uc *CurateUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

func WithCurateLogger(l *applogger.Logger) CurateOption {
	return func(uc *CurateUseCase) { uc.l = l }
}

func WithClock(now func() time.Time) CurateOption {
	return func(uc *CurateUseCase) { uc.now = now }
}

func NewCurateUseCase(store domrepo.AssetStore, metrics domrepo.Metrics, opts ...CurateOption) *CurateUseCase {
	uc := &CurateUseCase{
		store:        store,
		metrics:      metrics,
		defaultLimit: 25,
		maxAgeMin:    domrepo.DefaultMaxAgeMinutes,
		timeout:      10 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type CurateParams struct {
	Style      string
	Preference string
	Limit      int
	// AsOf is the reference instant for freshness; zero means now.
	AsOf time.Time
}

// Curate resolves the strategy, reads the store once and returns the
// snapshot. Thin data yields a short or empty snapshot, never an error.
func (uc *CurateUseCase) Curate(ctx context.Context, p CurateParams) (*models.Snapshot, error) {
	start := time.Now()

	st, err := curation.ResolveStrategy(p.Style, p.Preference)
	if err != nil {
		uc.metrics.RecordError("invalid_argument")
		return nil, err
	}
	limit, err := uc.resolveLimit(p.Limit)
	if err != nil {
		uc.metrics.RecordError("invalid_argument")
		return nil, err
	}

	live := p.AsOf.IsZero()
	key := cache.Key(snapshotCachePrefix, st.Style, st.Preference, limit)
	if live && uc.cache != nil {
		var cached models.Snapshot
		err := uc.cache.Get(ctx, key, &cached)
		if err == nil && uc.stillFresh(&cached, uc.now()) {
			uc.metrics.RecordLatency("curate_cached_seconds", time.Since(start).Seconds())
			return &cached, nil
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) && uc.l != nil {
			uc.l.Warn("snapshot cache get failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	asOf := p.AsOf
	if live {
		asOf = uc.now()
	}
	asOf = asOf.UTC()

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	fetchStart := time.Now()
	records, err := uc.store.FetchAssets(ctx, domrepo.AssetFilter{
		AssetTypes:    st.AssetTypes,
		MaxAgeMinutes: uc.maxAgeMin,
		AsOf:          asOf,
	})
	uc.metrics.RecordLatency("store_fetch_seconds", time.Since(fetchStart).Seconds())
	if err != nil {
		uc.metrics.RecordError("source_unavailable")
		if uc.l != nil {
			uc.l.Error("fetch assets failed",
				applogger.String("style", string(st.Style)),
				applogger.String("preference", string(st.Preference)),
				applogger.Error(err),
			)
		}
		if !errors.Is(err, models.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrSourceUnavailable, err)
		}
		return nil, err
	}

	res := curation.Run(st, records, limit)
	snap := &models.Snapshot{
		Style:      st.Style,
		Preference: st.Preference,
		Strategy:   st.Name,
		Limit:      limit,
		AsOf:       asOf,
		Assets:     res.Assets,
		Text:       res.Text,
		Categories: res.Categories,
	}

	uc.metrics.RecordCuration(string(st.Style), string(st.Preference), len(snap.Assets))
	for _, c := range snap.Categories {
		uc.metrics.RecordCategory(string(c.Category), c.Selected, c.Kept)
	}
	uc.metrics.RecordLatency("curate_seconds", time.Since(start).Seconds())

	if uc.l != nil {
		uc.l.Info("snapshot curated",
			applogger.String("strategy", st.Name),
			applogger.String("preference", string(st.Preference)),
			applogger.Int("limit", limit),
			applogger.Int("candidates", len(records)),
			applogger.Int("assets", len(snap.Assets)),
			applogger.Duration("took_ms", time.Since(start)),
		)
	}

	if live && uc.cache != nil {
		if ttl := uc.snapshotTTL(snap); ttl > 0 {
			if err := uc.cache.Set(ctx, key, snap, ttl); err != nil && uc.l != nil {
				uc.l.Warn("snapshot cache set failed", applogger.String("key", key), applogger.Error(err))
			}
		}
	}
	return snap, nil
}

// snapshotTTL bounds the cache lifetime of snap by the moment its oldest
// asset leaves the freshness window.
func (uc *CurateUseCase) snapshotTTL(snap *models.Snapshot) time.Duration {
	ttl := uc.cacheTTL
	window := time.Duration(uc.maxAgeMin) * time.Minute
	for _, a := range snap.Assets {
		if left := a.LastUpdated.Add(window).Sub(snap.AsOf); left < ttl {
			ttl = left
		}
	}
	return ttl
}

// stillFresh reports whether a cached snapshot may be served at now: it is
// younger than the cache TTL and none of its assets has aged out.
func (uc *CurateUseCase) stillFresh(snap *models.Snapshot, now time.Time) bool {
	if now.Sub(snap.AsOf) >= uc.cacheTTL {
		return false
	}
	window := time.Duration(uc.maxAgeMin) * time.Minute
	for _, a := range snap.Assets {
		if !a.IsFresh(now, window) {
			return false
		}
	}
	return true
}

// Validate checks style, preference and limit without reading the store.
func (uc *CurateUseCase) Validate(p CurateParams) error {
	if _, err := curation.ResolveStrategy(p.Style, p.Preference); err != nil {
		return err
	}
	_, err := uc.resolveLimit(p.Limit)
	return err
}

// Strategies returns every (style, preference) strategy with limits resolved
// at limit (0 means the default).
func (uc *CurateUseCase) Strategies(limit int) ([]models.StrategyDTO, error) {
	limit, err := uc.resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.StrategyDTO, 0, len(models.TradingStyles())*len(models.AssetPreferences()))
	for _, s := range models.TradingStyles() {
		for _, p := range models.AssetPreferences() {
			st, err := curation.Resolve(s, p)
			if err != nil {
				return nil, err
			}
			dto := models.StrategyDTO{
				Style:      string(s),
				Preference: string(p),
				Name:       st.Name,
			}
			for _, t := range st.AssetTypes {
				dto.AssetTypes = append(dto.AssetTypes, string(t))
			}
			for _, q := range curation.AllocateLimits(st.Quotas, limit) {
				dto.Quotas = append(dto.Quotas, models.QuotaDTO{
					Category: string(q.Category),
					Weight:   q.Weight,
					Limit:    q.Limit,
				})
			}
			out = append(out, dto)
		}
	}
	return out, nil
}

// InvalidateSnapshots drops every cached snapshot.
func (uc *CurateUseCase) InvalidateSnapshots(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	return uc.cache.DeleteByPattern(ctx, cache.Pattern(snapshotCachePrefix))
}

// Health reports whether the asset store is reachable.
func (uc *CurateUseCase) Health(ctx context.Context) error {
	return uc.store.Health(ctx)
}

func (uc *CurateUseCase) resolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: negative limit %d", models.ErrInvalidArgument, limit)
	case limit == 0:
		return uc.defaultLimit, nil
	case uc.maxLimit > 0 && limit > uc.maxLimit:
		return 0, fmt.Errorf("%w: limit %d exceeds maximum %d", models.ErrInvalidArgument, limit, uc.maxLimit)
	}
	return limit, nil
}
