package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/trending"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *cache.Layer) {
	t.Helper()
	s := store.NewMemoryStore()
	s.SetClock(func() time.Time { return testNow })
	s.PutUser(store.UserProfile{ID: "u1", Username: "alice", PostCount: 2})
	s.PutUser(store.UserProfile{ID: "u2", Username: "bob"})
	s.PutPost(store.PostSummary{ID: "p1", AuthorID: "u1", Likes: 3, PublishedAt: testNow.Add(-2 * time.Hour)})
	s.PutPost(store.PostSummary{ID: "p2", AuthorID: "u1", Likes: 9, PublishedAt: testNow.Add(-time.Hour)})
	s.PutPost(store.PostSummary{ID: "old", AuthorID: "u2", Likes: 100, PublishedAt: testNow.Add(-8 * 24 * time.Hour)})
	s.PutFollow("u2", "u1", testNow.Add(-time.Hour))

	layer := cache.NewLayer(cache.NewMemoryBackend(100, time.Hour), cache.Options{})
	svc := NewService(s, layer, Config{
		StoreTimeout: 50 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
	return svc, s, layer
}

func postIDs(posts []store.PostSummary) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestGetTimeline(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetTimeline(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1", "old"}, postIDs(first.Items))
	assert.Equal(t, 3, first.Meta.Count)
	assert.False(t, first.Cached)

	calls := s.Calls()
	second, err := svc.GetTimeline(ctx, "u2", 10)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, calls, s.Calls())
}

func TestGetTimeline_InvalidatedByFollow(t *testing.T) {
	svc, s, layer := newTestService(t)
	ctx := context.Background()

	before, err := svc.GetTimeline(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, before.Items, 2)

	_, err = s.Follow(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = layer.Apply(ctx, cache.FollowChanged("u1", "u2"))
	require.NoError(t, err)

	after, err := svc.GetTimeline(ctx, "u1", 10)
	require.NoError(t, err)
	assert.False(t, after.Cached)
	assert.Len(t, after.Items, 3)
}

func TestGetPopularPosts_LastSevenDays(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.GetPopularPosts(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, postIDs(got.Items))
}

func TestGetUserProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	profile, meta, err := svc.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.False(t, meta.Cached)

	_, meta, err = svc.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, meta.Cached)

	_, _, err = svc.GetUserProfile(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetPost(t *testing.T) {
	svc, _, _ := newTestService(t)

	post, _, err := svc.GetPost(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 9, post.Likes)
	assert.Equal(t, "alice", post.AuthorUsername)

	_, _, err = svc.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFeed_Validation(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetTimeline(ctx, "", 10)
	assert.ErrorIs(t, err, trending.ErrInvalidParameter)
	_, err = svc.GetTimeline(ctx, "u1", 0)
	assert.ErrorIs(t, err, trending.ErrInvalidParameter)
	_, err = svc.GetPopularPosts(ctx, trending.MaxLimit+1)
	assert.ErrorIs(t, err, trending.ErrInvalidParameter)
	assert.Zero(t, s.Calls())
}

func TestFeed_StoreDownServesStale(t *testing.T) {
	svc, s, layer := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetPopularPosts(ctx, 5)
	require.NoError(t, err)
	_, err = layer.Invalidate(ctx, cache.PopularPostsKey(5))
	require.NoError(t, err)

	s.SetFailure(errors.New("too many connections"))
	got, err := svc.GetPopularPosts(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Len(t, got.Items, 2)

	_, err = svc.GetTimeline(ctx, "u1", 5)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}
