package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/ranking/internal/store"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder(s store.EngagementStore) *Builder {
	return NewBuilder(s, Config{
		StoreTimeout: 50 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
}

func seedUsers(s *store.MemoryStore, ids ...string) {
	for _, id := range ids {
		s.PutUser(store.UserProfile{ID: id, Username: "user-" + id})
	}
}

func TestTrendingHashtags_ThresholdExclusion(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "u1")

	// #quiet has 4 posts with huge engagement; #busy has 5 with none
	for i := 0; i < 4; i++ {
		s.PutPost(store.PostSummary{
			ID: fmt.Sprintf("q%d", i), AuthorID: "u1", Likes: 1000,
			Hashtags: []string{"quiet"}, PublishedAt: testNow.Add(-time.Hour),
		})
	}
	for i := 0; i < 5; i++ {
		s.PutPost(store.PostSummary{
			ID: fmt.Sprintf("b%d", i), AuthorID: "u1",
			Hashtags: []string{"busy"}, PublishedAt: testNow.Add(-time.Hour),
		})
	}

	items, err := newTestBuilder(s).TrendingHashtags(context.Background(), Query{Limit: 10, TimeframeHours: 24})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "busy", items[0].ID)
	assert.Equal(t, 1, items[0].Rank)
	assert.InDelta(t, 3.0, items[0].Score, 1e-9)
}

func TestTrendingPosts_ThresholdAndOrder(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "u1", "u2")

	s.PutPost(store.PostSummary{ID: "low", AuthorID: "u1", Likes: 9, PublishedAt: testNow.Add(-time.Hour)})
	s.PutPost(store.PostSummary{ID: "old", AuthorID: "u1", Likes: 50, PublishedAt: testNow.Add(-48 * time.Hour)})
	s.PutPost(store.PostSummary{ID: "b", AuthorID: "u2", Likes: 10, PublishedAt: testNow.Add(-2 * time.Hour)})
	s.PutPost(store.PostSummary{ID: "a", AuthorID: "u2", Likes: 10, PublishedAt: testNow.Add(-2 * time.Hour)})
	s.PutPost(store.PostSummary{ID: "top", AuthorID: "u1", Likes: 20, Comments: 5, PublishedAt: testNow.Add(-3 * time.Hour)})

	items, err := newTestBuilder(s).TrendingPosts(context.Background(), Query{Limit: 10, TimeframeHours: 24})
	require.NoError(t, err)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"top", "a", "b"}, ids)
	assert.Equal(t, "user-u1", items[0].Author.Username)

	limited, err := newTestBuilder(s).TrendingPosts(context.Background(), Query{Limit: 1, TimeframeHours: 24})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTrendingUsers_PositiveScoreOnly(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "u1", "u2", "u3")

	s.PutPost(store.PostSummary{ID: "p1", AuthorID: "u1", Likes: 10, PublishedAt: testNow.Add(-time.Hour)})
	s.PutFollow("u3", "u2", testNow.Add(-time.Hour))

	items, err := newTestBuilder(s).TrendingUsers(context.Background(), Query{Limit: 10, TimeframeHours: 24})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "u1", items[0].ID)
	assert.InDelta(t, 3.0, items[0].Score, 1e-9)
	assert.Equal(t, "u2", items[1].ID)
	assert.InDelta(t, 1.0, items[1].Score, 1e-9)
}

func TestPersonalizedTrending_FollowBonus(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "reader", "friend", "stranger")

	s.PutPost(store.PostSummary{ID: "mine", AuthorID: "reader", PublishedAt: testNow.Add(-100 * time.Hour)})
	s.PutPost(store.PostSummary{ID: "f", AuthorID: "friend", Likes: 10, PublishedAt: testNow.Add(-time.Hour)})
	s.PutPost(store.PostSummary{ID: "s", AuthorID: "stranger", Likes: 13, PublishedAt: testNow.Add(-time.Hour)})
	s.PutFollow("reader", "friend", testNow.Add(-200*time.Hour))

	items, err := newTestBuilder(s).PersonalizedTrending(context.Background(), "reader", Query{Limit: 10, TimeframeHours: 24})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "f", items[0].ID)
	assert.True(t, items[0].Followed)
	assert.InDelta(t, 14.9, items[0].Score, 1e-9)
	assert.Equal(t, "s", items[1].ID)
}

func TestPersonalizedTrending_NoHistoryFallsBack(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "newbie", "u1")

	s.PutPost(store.PostSummary{ID: "quiet", AuthorID: "u1", Likes: 2, PublishedAt: testNow.Add(-time.Hour)})
	s.PutFollow("newbie", "u1", testNow.Add(-time.Hour))

	items, err := newTestBuilder(s).PersonalizedTrending(context.Background(), "newbie", Query{Limit: 10, TimeframeHours: 24})
	require.NoError(t, err)
	require.Len(t, items, 1, "fallback ignores the engagement threshold")
	assert.Equal(t, "quiet", items[0].ID)
	assert.False(t, items[0].Followed, "fallback is not personalized")
}

func TestVelocity(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "u1")

	counts := []int{5, 3, 1}
	n := 0
	for bucket, c := range counts {
		for i := 0; i < c; i++ {
			s.PutPost(store.PostSummary{
				ID:          fmt.Sprintf("p%d", n),
				AuthorID:    "u1",
				Hashtags:    []string{"h"},
				PublishedAt: testNow.Add(-time.Duration(bucket)*time.Hour - 10*time.Minute),
			})
			n++
		}
	}

	v, err := newTestBuilder(s).Velocity(context.Background(), store.EntityHashtag, "h", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 1}, v.Buckets)
	assert.InDelta(t, -2.0, v.Velocity, 1e-9)
	assert.Equal(t, "declining", v.Interpretation)
	assert.InDelta(t, 9*0.6, v.Score, 1e-9, "nine recent posts, no engagement")
}

func TestVelocity_ScoresEntitySnapshot(t *testing.T) {
	s := store.NewMemoryStore()
	seedUsers(s, "u1")
	s.PutPost(store.PostSummary{
		ID:          "p1",
		AuthorID:    "u1",
		Likes:       4,
		Comments:    1,
		PublishedAt: testNow.Add(-2 * time.Hour),
	})
	b := newTestBuilder(s)
	ctx := context.Background()

	post, err := b.Velocity(ctx, store.EntityPost, "p1", 3)
	require.NoError(t, err)
	assert.InDelta(t, 4*1.0+1*2.0-2*0.1, post.Score, 1e-9)

	user, err := b.Velocity(ctx, store.EntityUser, "u1", 3)
	require.NoError(t, err)
	assert.InDelta(t, 1*2.0+5*0.1, user.Score, 1e-9)

	missing, err := b.Velocity(ctx, store.EntityPost, "ghost", 3)
	require.NoError(t, err)
	assert.Zero(t, missing.Score)
}

func TestEmptyStoreReturnsEmptyLists(t *testing.T) {
	b := newTestBuilder(store.NewMemoryStore())
	ctx := context.Background()
	q := Query{Limit: 10, TimeframeHours: 24}

	hashtags, err := b.TrendingHashtags(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, hashtags)

	posts, err := b.TrendingPosts(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, posts)

	users, err := b.TrendingUsers(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestStoreFailuresWrapUnavailable(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetFailure(errors.New("connection reset"))

	_, err := newTestBuilder(s).TrendingPosts(context.Background(), Query{Limit: 10, TimeframeHours: 24})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestStoreTimeoutWrapsUnavailable(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetDelay(time.Second)

	started := time.Now()
	_, err := newTestBuilder(s).TrendingHashtags(context.Background(), Query{Limit: 10, TimeframeHours: 24})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}
