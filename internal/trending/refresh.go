package trending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Stats reports which warm-set keys are cached and when the last refresh finished
type Stats struct {
	Backend     string          `json:"backend"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	Warm        map[string]bool `json:"warm"`
	WarmLimit   int             `json:"warm_limit"`
	Timeframe   int             `json:"warm_timeframe"`
}

// warmKeys maps each warm-set list to its cache key
func (s *Service) warmKeys() map[string]string {
	return map[string]string{
		"hashtags": cache.TrendingHashtagsKey(s.warmLimit, s.warmTimeframe),
		"posts":    cache.TrendingPostsKey(s.warmLimit, s.warmTimeframe),
		"users":    cache.TrendingUsersKey(s.warmLimit, s.warmTimeframe),
	}
}

// RefreshAll drops every trending list, recomputes the warm set and records
// the completion time under cache.LastUpdatedKey. A refresh that cannot drop
// the old lists fails, since the warm reads would only hit them again. The
// previous marker survives a failed refresh. Running it twice leaves the
// cache in the same state.
func (s *Service) RefreshAll(ctx context.Context) (time.Time, error) {
	ctx, span := telemetry.StartSpan(ctx, "trending.refresh_all",
		attribute.Int("trending.limit", s.warmLimit),
		attribute.Int("trending.timeframe_hours", s.warmTimeframe),
	)
	defer span.End()
	started := time.Now()

	deleted := 0
	for _, pattern := range cache.TrendingListPatterns {
		n, err := s.cache.Invalidate(ctx, pattern)
		deleted += n
		if err != nil {
			err = fmt.Errorf("drop %s: %w", pattern, err)
			telemetry.RecordError(span, err)
			metrics.RecordRefresh(time.Time{}, err)
			logger.Log.Error("Trending refresh failed", zap.Error(err), logger.WithDuration(time.Since(started)))
			return time.Time{}, err
		}
	}

	var errs []error
	warm := func(kind string, degraded bool, err error) {
		if err == nil && degraded {
			err = ErrStoreUnavailable
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", kind, err))
		}
	}

	h, err := s.GetTrendingHashtags(ctx, s.warmLimit, s.warmTimeframe)
	warm("hashtags", h.Degraded, err)
	p, err := s.GetTrendingPosts(ctx, s.warmLimit, s.warmTimeframe)
	warm("posts", p.Degraded, err)
	u, err := s.GetTrendingUsers(ctx, s.warmLimit, s.warmTimeframe)
	warm("users", u.Degraded, err)

	if err := errors.Join(errs...); err != nil {
		telemetry.RecordError(span, err)
		metrics.RecordRefresh(time.Time{}, err)
		logger.Log.Error("Trending refresh failed", zap.Error(err), logger.WithDuration(time.Since(started)))
		return time.Time{}, err
	}

	completedAt := s.ranker.Now().UTC()
	if err := s.cache.Set(ctx, cache.LastUpdatedKey, completedAt, 0); err != nil {
		logger.Log.Warn("Failed to record trending refresh time", zap.Error(err))
	}
	metrics.RecordRefresh(completedAt, nil)

	logger.Log.Info("Trending refresh completed",
		zap.Int("invalidated", deleted),
		zap.Int("hashtags", len(h.Items)),
		zap.Int("posts", len(p.Items)),
		zap.Int("users", len(u.Items)),
		logger.WithDuration(time.Since(started)))
	return completedAt, nil
}

// GetStats reports the warm state of the trending cache
func (s *Service) GetStats(ctx context.Context) Stats {
	stats := Stats{
		Backend:   s.cache.Backend().Name(),
		Warm:      make(map[string]bool, 3),
		WarmLimit: s.warmLimit,
		Timeframe: s.warmTimeframe,
	}
	for kind, key := range s.warmKeys() {
		stats.Warm[kind] = s.cache.Exists(ctx, key)
	}

	var last time.Time
	if s.cache.Get(ctx, cache.LastUpdatedKey, &last) {
		stats.LastUpdated = &last
	}
	return stats
}
