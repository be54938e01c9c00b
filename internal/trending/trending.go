// Package trending is the request-facing facade over the ranking engine: it
// validates parameters, serves ranked lists through the cache layer and
// refreshes the warm set.
package trending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/ranking"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Parameter bounds
const (
	DefaultLimit     = 20
	DefaultTimeframe = 24
	MaxLimit         = 100
	MaxHours         = 168
)

var (
	// ErrInvalidParameter is returned before any cache or store access
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrStoreUnavailable is returned when the store failed and no stale copy exists
	ErrStoreUnavailable = ranking.ErrStoreUnavailable
)

// ParamError names the rejected parameter
type ParamError struct {
	Field   string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

// Result is the envelope every list read returns
type Result[T any] struct {
	Items      []T       `json:"items"`
	Degraded   bool      `json:"degraded"`
	Cached     bool      `json:"cached"`
	ComputedAt time.Time `json:"computed_at"`
}

// cachedList is what gets stored under a trending key
type cachedList[T any] struct {
	Items      []T       `json:"items"`
	ComputedAt time.Time `json:"computed_at"`
}

// VelocityResponse is a velocity result with its cache provenance
type VelocityResponse struct {
	ranking.VelocityResult
	Degraded bool `json:"degraded"`
	Cached   bool `json:"cached"`
}

// Ranker computes ranked lists; *ranking.Builder implements it
type Ranker interface {
	TrendingHashtags(ctx context.Context, q ranking.Query) ([]ranking.HashtagItem, error)
	TrendingPosts(ctx context.Context, q ranking.Query) ([]ranking.PostItem, error)
	TrendingUsers(ctx context.Context, q ranking.Query) ([]ranking.UserItem, error)
	PersonalizedTrending(ctx context.Context, userID string, q ranking.Query) ([]ranking.PostItem, error)
	Velocity(ctx context.Context, entity store.EntityType, id string, hours int) (ranking.VelocityResult, error)
	Now() time.Time
}

var _ Ranker = (*ranking.Builder)(nil)

// Config selects the warm set RefreshAll recomputes
type Config struct {
	WarmLimit     int
	WarmTimeframe int
}

// Service serves trending reads through the cache layer
type Service struct {
	ranker        Ranker
	cache         *cache.Layer
	warmLimit     int
	warmTimeframe int
}

// NewService creates the trending facade
func NewService(r Ranker, c *cache.Layer, cfg Config) *Service {
	if cfg.WarmLimit <= 0 {
		cfg.WarmLimit = DefaultLimit
	}
	if cfg.WarmTimeframe <= 0 {
		cfg.WarmTimeframe = DefaultTimeframe
	}
	return &Service{
		ranker:        r,
		cache:         c,
		warmLimit:     cfg.WarmLimit,
		warmTimeframe: cfg.WarmTimeframe,
	}
}

func validateQuery(limit, timeframeHours int) error {
	if limit < 1 || limit > MaxLimit {
		return &ParamError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxLimit)}
	}
	if timeframeHours < 1 || timeframeHours > MaxHours {
		return &ParamError{Field: "timeframe", Message: fmt.Sprintf("must be between 1 and %d hours", MaxHours)}
	}
	return nil
}

// list serves one ranked list through the cache layer
func list[T any](ctx context.Context, s *Service, kind, key string, q ranking.Query, compute func(context.Context, ranking.Query) ([]T, error)) (Result[T], error) {
	ctx, span := telemetry.TraceQuery(ctx, kind, q.Limit, q.TimeframeHours)
	defer span.End()

	v, meta, err := cache.GetOrCompute(ctx, s.cache, key, cache.TrendingTTL, func(ctx context.Context) (cachedList[T], error) {
		items, err := compute(ctx, q)
		if err != nil {
			return cachedList[T]{}, err
		}
		if items == nil {
			items = []T{}
		}
		return cachedList[T]{Items: items, ComputedAt: s.ranker.Now()}, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return Result[T]{Items: []T{}, Degraded: errors.Is(err, ErrStoreUnavailable)}, err
	}

	telemetry.RecordResult(span, len(v.Items), meta.Cached, meta.Stale)
	return Result[T]{
		Items:      v.Items,
		Degraded:   meta.Stale,
		Cached:     meta.Cached || meta.Stale,
		ComputedAt: v.ComputedAt,
	}, nil
}

// GetTrendingHashtags returns hashtags ranked over the last timeframeHours
func (s *Service) GetTrendingHashtags(ctx context.Context, limit, timeframeHours int) (Result[ranking.HashtagItem], error) {
	if err := validateQuery(limit, timeframeHours); err != nil {
		return Result[ranking.HashtagItem]{Items: []ranking.HashtagItem{}}, err
	}
	q := ranking.Query{Limit: limit, TimeframeHours: timeframeHours}
	return list(ctx, s, "hashtags", cache.TrendingHashtagsKey(limit, timeframeHours), q, s.ranker.TrendingHashtags)
}

// GetTrendingPosts returns posts ranked over the last timeframeHours
func (s *Service) GetTrendingPosts(ctx context.Context, limit, timeframeHours int) (Result[ranking.PostItem], error) {
	if err := validateQuery(limit, timeframeHours); err != nil {
		return Result[ranking.PostItem]{Items: []ranking.PostItem{}}, err
	}
	q := ranking.Query{Limit: limit, TimeframeHours: timeframeHours}
	return list(ctx, s, "posts", cache.TrendingPostsKey(limit, timeframeHours), q, s.ranker.TrendingPosts)
}

// GetTrendingUsers returns users ranked over the last timeframeHours
func (s *Service) GetTrendingUsers(ctx context.Context, limit, timeframeHours int) (Result[ranking.UserItem], error) {
	if err := validateQuery(limit, timeframeHours); err != nil {
		return Result[ranking.UserItem]{Items: []ranking.UserItem{}}, err
	}
	q := ranking.Query{Limit: limit, TimeframeHours: timeframeHours}
	return list(ctx, s, "users", cache.TrendingUsersKey(limit, timeframeHours), q, s.ranker.TrendingUsers)
}

// GetPersonalizedTrending returns trending posts for userID over the default timeframe
func (s *Service) GetPersonalizedTrending(ctx context.Context, userID string, limit int) (Result[ranking.PostItem], error) {
	if userID == "" {
		return Result[ranking.PostItem]{Items: []ranking.PostItem{}}, &ParamError{Field: "user_id", Message: "is required"}
	}
	if err := validateQuery(limit, DefaultTimeframe); err != nil {
		return Result[ranking.PostItem]{Items: []ranking.PostItem{}}, err
	}

	q := ranking.Query{Limit: limit, TimeframeHours: DefaultTimeframe}
	return list(ctx, s, "personalized", cache.PersonalizedKey(userID, limit), q,
		func(ctx context.Context, q ranking.Query) ([]ranking.PostItem, error) {
			return s.ranker.PersonalizedTrending(ctx, userID, q)
		})
}

// GetTrendVelocity returns the hourly trend of one entity over the last hours
func (s *Service) GetTrendVelocity(ctx context.Context, entityType, entityID string, hours int) (VelocityResponse, error) {
	entity := store.EntityType(entityType)
	if !entity.Valid() {
		return VelocityResponse{}, &ParamError{Field: "type", Message: "must be hashtag, post or user"}
	}
	if entityID == "" {
		return VelocityResponse{}, &ParamError{Field: "id", Message: "is required"}
	}
	if hours < 1 || hours > MaxHours {
		return VelocityResponse{}, &ParamError{Field: "hours", Message: fmt.Sprintf("must be between 1 and %d", MaxHours)}
	}

	ctx, span := telemetry.StartSpan(ctx, "trending.velocity",
		attribute.String("entity.type", entityType),
		attribute.String("entity.id", entityID),
		attribute.Int("velocity.hours", hours),
	)
	defer span.End()

	key := cache.VelocityKey(entityType, entityID, hours)
	v, meta, err := cache.GetOrCompute(ctx, s.cache, key, cache.TrendingTTL, func(ctx context.Context) (ranking.VelocityResult, error) {
		return s.ranker.Velocity(ctx, entity, entityID, hours)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return VelocityResponse{Degraded: errors.Is(err, ErrStoreUnavailable)}, err
	}

	telemetry.RecordResult(span, len(v.Buckets), meta.Cached, meta.Stale)
	return VelocityResponse{
		VelocityResult: v,
		Degraded:       meta.Stale,
		Cached:         meta.Cached || meta.Stale,
	}, nil
}
