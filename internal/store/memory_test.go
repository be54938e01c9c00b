package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Fixtures(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.PutUser(UserProfile{ID: "u1", Username: "alice"})
	s.PutUser(UserProfile{ID: "u2", Username: "bob"})
	s.PutPost(PostSummary{ID: "p1", AuthorID: "u1", Likes: 2, Comments: 1, Hashtags: []string{"#Go"}, PublishedAt: now.Add(-time.Hour)})
	s.PutPost(PostSummary{ID: "p2", AuthorID: "u1", Likes: 1, Hashtags: []string{"go"}, PublishedAt: now.Add(-30 * time.Hour)})
	s.PutFollow("u2", "u1", now.Add(-2*time.Hour))

	since := now.Add(-24 * time.Hour)

	count, err := s.CountRecentPostsForHashtag(ctx, "go", since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	sum, err := s.EngagementSumForHashtag(ctx, "go", since)
	require.NoError(t, err)
	assert.Equal(t, 3, sum)

	snap, err := s.UserActivitySnapshot(ctx, "u1", since)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.PostCount)
	assert.Equal(t, 1, snap.NewFollowers)

	post, err := s.PostEngagementSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", post.AuthorUsername)

	buckets, err := s.HourlyCounts(ctx, EntityUser, "u1", 2, now)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, buckets)

	timeline, err := s.Timeline(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Len(t, timeline, 2)
}

func TestMemoryStore_Writes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob", "")
	require.NoError(t, err)

	post, err := s.CreatePost(ctx, alice.ID, "hi", []string{"A", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, post.Hashtags)

	changed, err := s.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	profile, err := s.UserProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.FollowerCount)
	assert.Equal(t, 1, profile.PostCount)
}

func TestMemoryStore_FailureInjection(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("connection refused")
	s.SetFailure(boom)

	_, err := s.PostCandidates(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)

	s.SetFailure(nil)
	s.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.PostCandidates(ctx, time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, int64(2), s.Calls())
}
