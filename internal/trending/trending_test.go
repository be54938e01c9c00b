package trending

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/ranking"
	"github.com/zfogg/sidechain/ranking/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type TrendingSuite struct {
	suite.Suite
	store   *store.MemoryStore
	backend *cache.MemoryBackend
	layer   *cache.Layer
	svc     *Service
	ctx     context.Context
}

func (s *TrendingSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemoryStore()
	s.store.SetClock(func() time.Time { return testNow })

	s.store.PutUser(store.UserProfile{ID: "u1", Username: "alice"})
	s.store.PutUser(store.UserProfile{ID: "u2", Username: "bob"})
	for i := 0; i < 5; i++ {
		s.store.PutPost(store.PostSummary{
			ID: fmt.Sprintf("p%d", i), AuthorID: "u1",
			Likes: 10 + i, Comments: 1,
			Hashtags:    []string{"golang"},
			PublishedAt: testNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}

	builder := ranking.NewBuilder(s.store, ranking.Config{
		StoreTimeout: 50 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
	s.backend = cache.NewMemoryBackend(1000, 48*time.Hour)
	s.layer = cache.NewLayer(s.backend, cache.Options{})
	s.svc = NewService(builder, s.layer, Config{WarmLimit: 10, WarmTimeframe: 24})
}

func TestTrendingSuite(t *testing.T) {
	suite.Run(t, new(TrendingSuite))
}

func (s *TrendingSuite) TestCachedReadIsIdempotent() {
	first, err := s.svc.GetTrendingPosts(s.ctx, 10, 24)
	s.Require().NoError(err)
	s.False(first.Cached)
	s.Len(first.Items, 5)
	calls := s.store.Calls()

	second, err := s.svc.GetTrendingPosts(s.ctx, 10, 24)
	s.Require().NoError(err)
	s.True(second.Cached)
	s.Equal(first.Items, second.Items)
	s.Equal(first.ComputedAt, second.ComputedAt)
	s.Equal(calls, s.store.Calls(), "a cached read never reaches the store")
}

func (s *TrendingSuite) TestValidationRejectsBeforeStoreAccess() {
	cases := []struct {
		name  string
		call  func() error
		field string
	}{
		{"limit zero", func() error { _, err := s.svc.GetTrendingHashtags(s.ctx, 0, 24); return err }, "limit"},
		{"limit too large", func() error { _, err := s.svc.GetTrendingPosts(s.ctx, MaxLimit+1, 24); return err }, "limit"},
		{"timeframe too large", func() error { _, err := s.svc.GetTrendingUsers(s.ctx, 10, MaxHours+1); return err }, "timeframe"},
		{"missing user", func() error { _, err := s.svc.GetPersonalizedTrending(s.ctx, "", 10); return err }, "user_id"},
		{"unknown entity", func() error { _, err := s.svc.GetTrendVelocity(s.ctx, "comment", "c1", 24); return err }, "type"},
		{"velocity hours", func() error { _, err := s.svc.GetTrendVelocity(s.ctx, "post", "p1", 0); return err }, "hours"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := tc.call()
			s.ErrorIs(err, ErrInvalidParameter)
			var pe *ParamError
			s.Require().True(errors.As(err, &pe))
			s.Equal(tc.field, pe.Field)
		})
	}
	s.Zero(s.store.Calls())
}

func (s *TrendingSuite) TestStaleCopyServedWhenStoreDown() {
	fresh, err := s.svc.GetTrendingHashtags(s.ctx, 10, 24)
	s.Require().NoError(err)
	s.Require().Len(fresh.Items, 1)

	_, err = s.layer.Invalidate(s.ctx, cache.TrendingHashtagsKey(10, 24))
	s.Require().NoError(err)
	s.store.SetFailure(errors.New("connection refused"))

	got, err := s.svc.GetTrendingHashtags(s.ctx, 10, 24)
	s.Require().NoError(err)
	s.True(got.Degraded)
	s.Equal(fresh.Items, got.Items)
}

func (s *TrendingSuite) TestNoStaleCopyReportsUnavailable() {
	s.store.SetFailure(errors.New("connection refused"))

	got, err := s.svc.GetTrendingUsers(s.ctx, 10, 24)
	s.ErrorIs(err, ErrStoreUnavailable)
	s.True(got.Degraded)
	s.NotNil(got.Items)
	s.Empty(got.Items)
}

func (s *TrendingSuite) TestPostCreatedInvalidatesTrending() {
	before, err := s.svc.GetTrendingPosts(s.ctx, 10, 24)
	s.Require().NoError(err)

	post, err := s.store.CreatePost(s.ctx, "u2", "hello", []string{"golang"})
	s.Require().NoError(err)
	for i := 0; i < 12; i++ {
		_, err := s.store.Like(s.ctx, fmt.Sprintf("fan%d", i), post.ID)
		s.Require().NoError(err)
	}
	_, err = s.layer.Apply(s.ctx, cache.PostCreated("u2"))
	s.Require().NoError(err)

	after, err := s.svc.GetTrendingPosts(s.ctx, 10, 24)
	s.Require().NoError(err)
	s.False(after.Cached)
	s.Len(after.Items, len(before.Items)+1)
}

func (s *TrendingSuite) TestPersonalizedTrending() {
	s.store.PutFollow("u2", "u1", testNow.Add(-48*time.Hour))
	s.store.PutPost(store.PostSummary{ID: "own", AuthorID: "u2", PublishedAt: testNow.Add(-72 * time.Hour)})

	got, err := s.svc.GetPersonalizedTrending(s.ctx, "u2", 3)
	s.Require().NoError(err)
	s.Require().Len(got.Items, 3)
	for _, item := range got.Items {
		s.True(item.Followed)
	}
	s.True(s.layer.Exists(s.ctx, cache.PersonalizedKey("u2", 3)))
}

func (s *TrendingSuite) TestVelocity() {
	got, err := s.svc.GetTrendVelocity(s.ctx, "hashtag", "golang", 3)
	s.Require().NoError(err)
	s.Equal([]int{0, 1, 1}, got.Buckets)
	s.InDelta(0.5, got.Velocity, 1e-9)
	s.Equal("rising", got.Interpretation)
	s.False(got.Cached)

	again, err := s.svc.GetTrendVelocity(s.ctx, "hashtag", "golang", 3)
	s.Require().NoError(err)
	s.True(again.Cached)
}

func (s *TrendingSuite) TestRefreshAllWarmsAndIsIdempotent() {
	_, err := s.svc.GetPersonalizedTrending(s.ctx, "u2", 5)
	s.Require().NoError(err)

	stats := s.svc.GetStats(s.ctx)
	s.Nil(stats.LastUpdated)
	s.False(stats.Warm["posts"])

	at, err := s.svc.RefreshAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(testNow, at)
	s.False(s.layer.Exists(s.ctx, cache.PersonalizedKey("u2", 5)), "refresh drops every trending entry")

	first := s.svc.GetStats(s.ctx)
	s.Equal(map[string]bool{"hashtags": true, "posts": true, "users": true}, first.Warm)
	s.Require().NotNil(first.LastUpdated)
	s.True(testNow.Equal(*first.LastUpdated))
	s.Equal("memory", first.Backend)

	_, err = s.svc.RefreshAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(first, s.svc.GetStats(s.ctx))
}

func (s *TrendingSuite) TestRefreshAllFailsWhenStoreDown() {
	_, err := s.svc.RefreshAll(s.ctx)
	s.Require().NoError(err)

	s.store.SetFailure(errors.New("connection refused"))
	_, err = s.svc.RefreshAll(s.ctx)
	s.ErrorIs(err, ErrStoreUnavailable)

	stats := s.svc.GetStats(s.ctx)
	s.Require().NotNil(stats.LastUpdated, "a failed refresh keeps the previous marker")
	s.True(testNow.Equal(*stats.LastUpdated))
}

func (s *TrendingSuite) TestRefreshAllFailsWhenInvalidationFails() {
	_, err := s.svc.GetTrendingPosts(s.ctx, 10, 24)
	s.Require().NoError(err)

	down := errors.New("cache backend down")
	s.backend.SetFailure(down)
	_, err = s.svc.RefreshAll(s.ctx)
	s.ErrorIs(err, down)

	s.backend.SetFailure(nil)
	s.True(s.layer.Exists(s.ctx, cache.TrendingPostsKey(10, 24)))
	s.Nil(s.svc.GetStats(s.ctx).LastUpdated)
}

func TestParamError(t *testing.T) {
	err := error(&ParamError{Field: "limit", Message: "must be between 1 and 100"})
	assert.Equal(t, "invalid limit: must be between 1 and 100", err.Error())
	require.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrInvalidParameter)
}
