// Package feed serves the cached timeline, profile, post and popular reads.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"go.opentelemetry.io/otel/attribute"
)

// PopularWindow is how far back popular posts are drawn from
const PopularWindow = 7 * 24 * time.Hour

// PostsResponse is a cached list of posts
type PostsResponse struct {
	Items    []store.PostSummary `json:"items"`
	Meta     ResponseMeta        `json:"meta"`
	Degraded bool                `json:"degraded"`
	Cached   bool                `json:"cached"`
}

// ResponseMeta describes the page that was served
type ResponseMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// Config tunes the feed service
type Config struct {
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Service reads feed data through the cache layer
type Service struct {
	store   store.FeedStore
	cache   *cache.Layer
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a feed service
func NewService(s store.FeedStore, c *cache.Layer, cfg Config) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   s,
		cache:   c,
		timeout: cfg.StoreTimeout,
		now:     cfg.Now,
	}
}

func validateLimit(limit int) error {
	if limit < 1 || limit > trending.MaxLimit {
		return &trending.ParamError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", trending.MaxLimit)}
	}
	return nil
}

func requireID(field, id string) error {
	if id == "" {
		return &trending.ParamError{Field: field, Message: "is required"}
	}
	return nil
}

// posts serves a post list through the cache layer
func (s *Service) posts(ctx context.Context, op, key string, ttl time.Duration, limit int, fetch func(ctx context.Context) ([]store.PostSummary, error)) (PostsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed."+op, attribute.Int("feed.limit", limit))
	defer span.End()

	items, meta, err := cache.GetOrCompute(ctx, s.cache, key, ttl, func(ctx context.Context) ([]store.PostSummary, error) {
		var out []store.PostSummary
		err := store.Bounded(ctx, s.timeout, op, func(ctx context.Context) (err error) {
			out, err = fetch(ctx)
			return err
		})
		if out == nil {
			out = []store.PostSummary{}
		}
		return out, err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return PostsResponse{Items: []store.PostSummary{}, Meta: ResponseMeta{Limit: limit}}, err
	}

	telemetry.RecordResult(span, len(items), meta.Cached, meta.Stale)
	return PostsResponse{
		Items:    items,
		Meta:     ResponseMeta{Limit: limit, Count: len(items)},
		Degraded: meta.Stale,
		Cached:   meta.Cached || meta.Stale,
	}, nil
}

// GetTimeline returns the newest posts by userID and the users they follow
func (s *Service) GetTimeline(ctx context.Context, userID string, limit int) (PostsResponse, error) {
	if err := requireID("user_id", userID); err != nil {
		return PostsResponse{}, err
	}
	if err := validateLimit(limit); err != nil {
		return PostsResponse{}, err
	}
	return s.posts(ctx, "timeline", cache.TimelineKey(userID, limit), cache.TimelineTTL, limit,
		func(ctx context.Context) ([]store.PostSummary, error) {
			return s.store.Timeline(ctx, userID, limit)
		})
}

// GetPopularPosts returns the most engaged posts of the last PopularWindow
func (s *Service) GetPopularPosts(ctx context.Context, limit int) (PostsResponse, error) {
	if err := validateLimit(limit); err != nil {
		return PostsResponse{}, err
	}
	return s.posts(ctx, "popular_posts", cache.PopularPostsKey(limit), cache.PopularPostTTL, limit,
		func(ctx context.Context) ([]store.PostSummary, error) {
			return s.store.PopularPosts(ctx, s.now().Add(-PopularWindow), limit)
		})
}

// GetUserProfile returns a user's profile with its counters
func (s *Service) GetUserProfile(ctx context.Context, userID string) (store.UserProfile, cache.Meta, error) {
	if err := requireID("user_id", userID); err != nil {
		return store.UserProfile{}, cache.Meta{}, err
	}
	ctx, span := telemetry.StartSpan(ctx, "feed.user_profile", attribute.String("user.id", userID))
	defer span.End()

	profile, meta, err := cache.GetOrCompute(ctx, s.cache, cache.UserProfileKey(userID), cache.UserProfileTTL,
		func(ctx context.Context) (store.UserProfile, error) {
			var p store.UserProfile
			err := store.Bounded(ctx, s.timeout, "user_profile", func(ctx context.Context) (err error) {
				p, err = s.store.UserProfile(ctx, userID)
				return err
			})
			return p, err
		})
	telemetry.RecordError(span, err)
	return profile, meta, err
}

// GetPost returns a post with its engagement counters
func (s *Service) GetPost(ctx context.Context, postID string) (store.PostSummary, cache.Meta, error) {
	if err := requireID("post_id", postID); err != nil {
		return store.PostSummary{}, cache.Meta{}, err
	}
	ctx, span := telemetry.StartSpan(ctx, "feed.post", attribute.String("post.id", postID))
	defer span.End()

	post, meta, err := cache.GetOrCompute(ctx, s.cache, cache.PostKey(postID), cache.PostDetailTTL,
		func(ctx context.Context) (store.PostSummary, error) {
			var p store.PostSummary
			err := store.Bounded(ctx, s.timeout, "post_detail", func(ctx context.Context) (err error) {
				p, err = s.store.PostEngagementSnapshot(ctx, postID)
				return err
			})
			return p, err
		})
	telemetry.RecordError(span, err)
	return post, meta, err
}
