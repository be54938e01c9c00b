package ranking

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"github.com/zfogg/sidechain/ranking/internal/scoring"
	"github.com/zfogg/sidechain/ranking/internal/store"
)

// ErrStoreUnavailable wraps every engagement store failure or timeout
var ErrStoreUnavailable = store.ErrUnavailable

// Minimum activity an entity needs inside the window to be ranked at all
const (
	MinHashtagPosts   = 5
	MinPostEngagement = 10.0
)

// DefaultStoreTimeout bounds each store call when Config leaves it unset
const DefaultStoreTimeout = 2 * time.Second

// Query selects the window and size of a ranked list
type Query struct {
	Limit          int
	TimeframeHours int
}

// Config tunes the builder
type Config struct {
	StoreTimeout   time.Duration
	HashtagWeights scoring.HashtagWeights
	Now            func() time.Time
}

// Builder turns store snapshots into thresholded, scored and ranked lists
type Builder struct {
	store   store.EngagementStore
	timeout time.Duration
	weights scoring.HashtagWeights
	now     func() time.Time
}

// NewBuilder creates a ranking query builder over the engagement store
func NewBuilder(s store.EngagementStore, cfg Config) *Builder {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.HashtagWeights == (scoring.HashtagWeights{}) {
		cfg.HashtagWeights = scoring.DefaultHashtagWeights()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Builder{
		store:   s,
		timeout: cfg.StoreTimeout,
		weights: cfg.HashtagWeights,
		now:     cfg.Now,
	}
}

// Now returns the builder's clock reading
func (b *Builder) Now() time.Time {
	return b.now()
}

// call runs one store operation under the store timeout
func (b *Builder) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return store.Bounded(ctx, b.timeout, op, fn)
}

// window fixes now once so every snapshot of a list shares the same bounds
func (b *Builder) window(hours int) (start, end time.Time) {
	end = b.now()
	return end.Add(-time.Duration(hours) * time.Hour), end
}

// TrendingHashtags ranks hashtags with at least MinHashtagPosts posts in the window
func (b *Builder) TrendingHashtags(ctx context.Context, q Query) ([]HashtagItem, error) {
	started := time.Now()
	start, end := b.window(q.TimeframeHours)

	var activity []store.HashtagActivity
	err := b.call(ctx, "hashtag_activity", func(ctx context.Context) (err error) {
		activity, err = b.store.HashtagActivity(ctx, start)
		return err
	})
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(activity))
	snaps := make(map[string]scoring.EngagementSnapshot, len(activity))
	scores := make([]scoring.TrendScore, 0, len(activity))
	for _, a := range activity {
		if a.RecentPosts < MinHashtagPosts {
			continue
		}
		snap := scoring.EngagementSnapshot{
			EntityType:    scoring.Hashtag,
			EntityID:      a.HashtagID,
			RecentCount:   a.RecentPosts,
			EngagementSum: a.EngagementSum,
			WindowStart:   start,
			WindowEnd:     end,
		}
		names[a.HashtagID] = a.Name
		snaps[a.HashtagID] = snap
		scores = append(scores, scoring.TrendScore{
			EntityID:   a.HashtagID,
			RawScore:   scoring.ScoreHashtag(snap, b.weights),
			ComputedAt: end,
		})
	}

	ranked := top(scoring.Rank(scores), q.Limit)
	items := make([]HashtagItem, 0, len(ranked))
	for _, s := range ranked {
		snap := snaps[s.EntityID]
		items = append(items, HashtagItem{
			ID:            s.EntityID,
			Name:          names[s.EntityID],
			Score:         s.RawScore,
			Rank:          s.Rank,
			RecentPosts:   snap.RecentCount,
			EngagementSum: snap.EngagementSum,
		})
	}

	metrics.RecordRanking("hashtags", time.Since(started), len(items))
	return items, nil
}

// TrendingPosts ranks posts whose engagement reaches MinPostEngagement
func (b *Builder) TrendingPosts(ctx context.Context, q Query) ([]PostItem, error) {
	started := time.Now()
	start, end := b.window(q.TimeframeHours)

	candidates, err := b.postCandidates(ctx, start)
	if err != nil {
		return nil, err
	}

	items := b.rankPosts(candidates, start, end, MinPostEngagement, nil, q.Limit)
	metrics.RecordRanking("posts", time.Since(started), len(items))
	return items, nil
}

// TrendingUsers ranks users with a positive trend score
func (b *Builder) TrendingUsers(ctx context.Context, q Query) ([]UserItem, error) {
	started := time.Now()
	start, end := b.window(q.TimeframeHours)

	var activity []store.UserActivity
	err := b.call(ctx, "user_activity", func(ctx context.Context) (err error) {
		activity, err = b.store.UserActivity(ctx, start)
		return err
	})
	if err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(activity))
	scores := make([]scoring.TrendScore, 0, len(activity))
	for _, a := range activity {
		snap := scoring.EngagementSnapshot{
			EntityType:    scoring.User,
			EntityID:      a.UserID,
			RecentCount:   a.PostCount,
			EngagementSum: a.EngagementSum,
			FollowerDelta: a.NewFollowers,
			WindowStart:   start,
			WindowEnd:     end,
		}
		score := scoring.ScoreUser(snap)
		if score <= 0 {
			continue
		}
		usernames[a.UserID] = a.Username
		scores = append(scores, scoring.TrendScore{EntityID: a.UserID, RawScore: score, ComputedAt: end})
	}

	ranked := top(scoring.Rank(scores), q.Limit)
	items := make([]UserItem, 0, len(ranked))
	for _, s := range ranked {
		items = append(items, UserItem{
			ID:       s.EntityID,
			Username: usernames[s.EntityID],
			Score:    s.RawScore,
			Rank:     s.Rank,
		})
	}

	metrics.RecordRanking("users", time.Since(started), len(items))
	return items, nil
}

// PersonalizedTrending boosts trending posts by followed authors for users
// with post history; users without history get recent posts ranked by score
// with no engagement threshold.
func (b *Builder) PersonalizedTrending(ctx context.Context, userID string, q Query) ([]PostItem, error) {
	started := time.Now()
	start, end := b.window(q.TimeframeHours)

	var hasHistory bool
	err := b.call(ctx, "has_history", func(ctx context.Context) (err error) {
		hasHistory, err = b.store.HasHistory(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	candidates, err := b.postCandidates(ctx, start)
	if err != nil {
		return nil, err
	}

	if !hasHistory {
		items := b.rankPosts(candidates, start, end, 0, nil, q.Limit)
		metrics.RecordRanking("personalized_fallback", time.Since(started), len(items))
		return items, nil
	}

	var following map[string]struct{}
	err = b.call(ctx, "following_ids", func(ctx context.Context) (err error) {
		following, err = b.store.FollowingIDsOf(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	items := b.rankPosts(candidates, start, end, MinPostEngagement, following, q.Limit)
	metrics.RecordRanking("personalized", time.Since(started), len(items))
	return items, nil
}

// Velocity pulls hourly buckets for an entity and scores their trend
func (b *Builder) Velocity(ctx context.Context, entity store.EntityType, id string, hours int) (VelocityResult, error) {
	now := b.now()

	var buckets []int
	err := b.call(ctx, "hourly_counts", func(ctx context.Context) (err error) {
		buckets, err = b.store.HourlyCounts(ctx, entity, id, hours, now)
		return err
	})
	if err != nil {
		return VelocityResult{}, err
	}

	score, err := b.entityScore(ctx, entity, id, now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		return VelocityResult{}, err
	}

	v := scoring.ScoreVelocity(buckets)
	growth := 0.0
	if half := len(buckets) / 2; half > 0 {
		growth = scoring.GrowthRate(float64(sum(buckets[half:])), float64(sum(buckets[:half])))
	}
	return VelocityResult{
		EntityType:     string(entity),
		EntityID:       id,
		Hours:          hours,
		Buckets:        buckets,
		Velocity:       v,
		Interpretation: scoring.InterpretVelocity(v),
		GrowthPercent:  growth,
		Score:          score,
		ComputedAt:     now,
	}, nil
}

// entityScore scores one entity from its point snapshot over [start, end].
// An entity the store does not know scores 0.
func (b *Builder) entityScore(ctx context.Context, entity store.EntityType, id string, start, end time.Time) (float64, error) {
	snap := scoring.EngagementSnapshot{
		EntityType:  scoring.EntityType(entity),
		EntityID:    id,
		WindowStart: start,
		WindowEnd:   end,
	}

	var err error
	switch entity {
	case store.EntityHashtag:
		err = b.call(ctx, "hashtag_snapshot", func(ctx context.Context) (err error) {
			if snap.RecentCount, err = b.store.CountRecentPostsForHashtag(ctx, id, start); err != nil {
				return err
			}
			snap.EngagementSum, err = b.store.EngagementSumForHashtag(ctx, id, start)
			return err
		})
	case store.EntityUser:
		err = b.call(ctx, "user_snapshot", func(ctx context.Context) error {
			a, err := b.store.UserActivitySnapshot(ctx, id, start)
			snap.RecentCount, snap.EngagementSum, snap.FollowerDelta = a.PostCount, a.EngagementSum, a.NewFollowers
			return err
		})
	case store.EntityPost:
		err = b.call(ctx, "post_snapshot", func(ctx context.Context) error {
			p, err := b.store.PostEngagementSnapshot(ctx, id)
			snap.LikeCount, snap.CommentCount, snap.RepostCount, snap.PublishedAt = p.Likes, p.Comments, p.Reposts, p.PublishedAt
			return err
		})
	}
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	switch entity {
	case store.EntityHashtag:
		return scoring.ScoreHashtag(snap, b.weights), nil
	case store.EntityUser:
		return scoring.ScoreUser(snap), nil
	case store.EntityPost:
		return scoring.ScorePost(snap, end), nil
	}
	return 0, nil
}

func (b *Builder) postCandidates(ctx context.Context, since time.Time) ([]store.PostSummary, error) {
	var candidates []store.PostSummary
	err := b.call(ctx, "post_candidates", func(ctx context.Context) (err error) {
		candidates, err = b.store.PostCandidates(ctx, since)
		return err
	})
	return candidates, err
}

// rankPosts scores candidates at end, drops those under minEngagement and
// adds the follow bonus for authors in boosted
func (b *Builder) rankPosts(candidates []store.PostSummary, start, end time.Time, minEngagement float64, boosted map[string]struct{}, limit int) []PostItem {
	byID := make(map[string]store.PostSummary, len(candidates))
	scores := make([]scoring.TrendScore, 0, len(candidates))
	for _, p := range candidates {
		snap := scoring.EngagementSnapshot{
			EntityType:   scoring.Post,
			EntityID:     p.ID,
			LikeCount:    p.Likes,
			CommentCount: p.Comments,
			RepostCount:  p.Reposts,
			PublishedAt:  p.PublishedAt,
			WindowStart:  start,
			WindowEnd:    end,
		}
		if scoring.PostEngagement(snap) < minEngagement {
			continue
		}
		score := scoring.ScorePost(snap, end)
		if _, ok := boosted[p.AuthorID]; ok {
			score += scoring.PersonalizedFollowBonus
		}
		byID[p.ID] = p
		scores = append(scores, scoring.TrendScore{EntityID: p.ID, RawScore: score, ComputedAt: end})
	}

	ranked := top(scoring.Rank(scores), limit)
	items := make([]PostItem, 0, len(ranked))
	for _, s := range ranked {
		p := byID[s.EntityID]
		_, followed := boosted[p.AuthorID]
		items = append(items, PostItem{
			ID:          p.ID,
			Score:       s.RawScore,
			Rank:        s.Rank,
			Author:      Author{ID: p.AuthorID, Username: p.AuthorUsername},
			Likes:       p.Likes,
			Comments:    p.Comments,
			Reposts:     p.Reposts,
			Hashtags:    p.Hashtags,
			PublishedAt: p.PublishedAt,
			Followed:    followed,
		})
	}
	return items
}

func top(scores []scoring.TrendScore, limit int) []scoring.TrendScore {
	if limit > 0 && len(scores) > limit {
		return scores[:limit]
	}
	return scores
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
