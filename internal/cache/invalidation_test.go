package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warm(t *testing.T, layer *Layer, keys ...string) {
	for _, k := range keys {
		_, _, err := GetOrCompute(context.Background(), layer, k, time.Hour, func(ctx context.Context) (string, error) {
			return "v:" + k, nil
		})
		require.NoError(t, err)
	}
}

func TestApply_PostCreatedMissesEveryTimeline(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()

	warm(t, layer,
		TimelineKey("u1", 20),
		TimelineKey("u1", 50),
		TimelineKey("u2", 20),
		UserProfileKey("u1"),
		UserProfileKey("u2"),
		TrendingPostsKey(10, 24),
		TrendingHashtagsKey(20, 24),
		VelocityKey("user", "u1", 3),
		PopularPostsKey(10),
	)

	deleted, err := layer.Apply(ctx, PostCreated("u1"))
	require.NoError(t, err)
	assert.Equal(t, 8, deleted)

	for _, k := range []string{
		TimelineKey("u1", 20),
		TimelineKey("u1", 50),
		TimelineKey("u2", 20),
		UserProfileKey("u1"),
		TrendingPostsKey(10, 24),
		TrendingHashtagsKey(20, 24),
		VelocityKey("user", "u1", 3),
		PopularPostsKey(10),
	} {
		assert.False(t, layer.Exists(ctx, k), k)
	}
	assert.True(t, layer.Exists(ctx, UserProfileKey("u2")), "other profiles stay cached")

	var calls int
	_, meta, err := GetOrCompute(ctx, layer, TimelineKey("u2", 20), TimelineTTL, func(ctx context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, meta.Cached, "a follower's timeline must miss after the author posts")
	assert.Equal(t, 1, calls)
}

func TestApply_FollowChanged(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()

	warm(t, layer,
		UserProfileKey("a"),
		UserProfileKey("b"),
		TimelineKey("a", 20),
		TimelineKey("b", 20),
		PersonalizedKey("a", 20),
		PersonalizedKey("b", 20),
		TrendingUsersKey(20, 24),
	)

	_, err := layer.Apply(ctx, FollowChanged("a", "b"))
	require.NoError(t, err)

	for _, k := range []string{UserProfileKey("a"), UserProfileKey("b"), TimelineKey("a", 20), PersonalizedKey("a", 20), TrendingUsersKey(20, 24)} {
		assert.False(t, layer.Exists(ctx, k), k)
	}
	assert.True(t, layer.Exists(ctx, TimelineKey("b", 20)))
	assert.True(t, layer.Exists(ctx, PersonalizedKey("b", 20)))
}

func TestApply_LikeChanged(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()

	warm(t, layer,
		PostKey("p1"),
		PostKey("p2"),
		TrendingPostsKey(10, 24),
		PersonalizedKey("u", 10),
		TimelineKey("u", 20),
		VelocityKey("post", "p1", 24),
		UserProfileKey("u"),
	)

	_, err := layer.Apply(ctx, LikeChanged("p1"))
	require.NoError(t, err)

	assert.False(t, layer.Exists(ctx, PostKey("p1")))
	assert.False(t, layer.Exists(ctx, TrendingPostsKey(10, 24)))
	assert.False(t, layer.Exists(ctx, PersonalizedKey("u", 10)))
	assert.False(t, layer.Exists(ctx, TimelineKey("u", 20)), "timeline items carry like counts")
	assert.False(t, layer.Exists(ctx, VelocityKey("post", "p1", 24)))
	assert.True(t, layer.Exists(ctx, PostKey("p2")))
	assert.True(t, layer.Exists(ctx, UserProfileKey("u")))
}

func TestInvalidate_WildcardNamespace(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	warm(t, layer, PostKey("p1"), TimelineKey("u1", 5), TrendingUsersKey(1, 1))

	deleted, err := layer.Invalidate(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestInvalidate_EnumerationUnsupportedIsNoOp(t *testing.T) {
	layer, _ := newTestLayer(WithoutEnumeration())
	ctx := context.Background()
	warm(t, layer, TrendingPostsKey(10, 24), PostKey("p1"))

	deleted, err := layer.Invalidate(ctx, "trending:posts:*")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.True(t, layer.Exists(ctx, TrendingPostsKey(10, 24)), "entry survives until its TTL")

	deleted, err = layer.Invalidate(ctx, PostKey("p1"))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, layer.Exists(ctx, PostKey("p1")), "exact keys are still deleted")
}

func TestInvalidate_BadPattern(t *testing.T) {
	layer, _ := newTestLayer()
	_, err := layer.Invalidate(context.Background(), "trending:[")
	assert.Error(t, err)
}

// localBus delivers published messages to every subscriber in-process
type localBus struct {
	mu       sync.Mutex
	handlers []func(string)
}

func (b *localBus) Publish(_ context.Context, message string) error {
	b.mu.Lock()
	handlers := append([]func(string){}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(message)
	}
	return nil
}

func (b *localBus) Subscribe(_ context.Context, handler func(string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

func TestTieredBackend_BroadcastDropsPeerL1(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryBackend(100, time.Hour)
	bus := &localBus{}

	a := NewTieredBackend(NewMemoryBackend(100, time.Minute), shared, time.Minute, bus)
	b := NewTieredBackend(NewMemoryBackend(100, time.Minute), shared, time.Minute, bus)
	require.NoError(t, a.Listen(ctx))
	require.NoError(t, b.Listen(ctx))

	require.NoError(t, a.Set(ctx, "post:p1", []byte("v1"), time.Hour))
	v, err := b.Get(ctx, "post:p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, a.Delete(ctx, "post:p1"))

	_, err = b.l1.Get(ctx, "post:p1")
	assert.ErrorIs(t, err, ErrCacheMiss, "peer L1 copy dropped")
	_, err = b.Get(ctx, "post:p1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTieredBackend_L1TTLCapped(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryBackend(100, time.Hour)
	tiered := NewTieredBackend(l1, NewMemoryBackend(100, time.Hour), 20*time.Millisecond, nil)

	require.NoError(t, tiered.Set(ctx, "post:p1", []byte("v1"), time.Hour))
	time.Sleep(40 * time.Millisecond)

	_, err := l1.Get(ctx, "post:p1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	v, err := tiered.Get(ctx, "post:p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestTieredBackend_BackfillCappedByL2Remaining(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryBackend(100, time.Hour)
	l2 := NewMemoryBackend(100, time.Hour)
	tiered := NewTieredBackend(l1, l2, time.Minute, nil)

	require.NoError(t, l2.Set(ctx, "post:p1", []byte("v1"), 30*time.Millisecond))
	v, err := tiered.Get(ctx, "post:p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	_, remaining, err := l1.GetWithTTL(ctx, "post:p1")
	require.NoError(t, err)
	assert.LessOrEqual(t, remaining, 30*time.Millisecond, "L1 copy expires with L2")

	time.Sleep(50 * time.Millisecond)
	_, err = tiered.Get(ctx, "post:p1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTieredBackend_SetTrackedTracksInL2(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryBackend(100, time.Hour)
	l2 := NewMemoryBackend(100, time.Hour)
	layer := NewLayer(NewTieredBackend(l1, l2, time.Minute, nil), Options{})

	require.NoError(t, layer.Set(ctx, TrendingPostsKey(10, 24), []string{"p1"}, TrendingTTL))
	members, err := l2.Members(ctx, NamespaceTrending)
	require.NoError(t, err)
	assert.Equal(t, []string{TrendingPostsKey(10, 24)}, members)

	n, err := layer.Invalidate(ctx, "trending:posts:*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = l1.Get(ctx, TrendingPostsKey(10, 24))
	assert.ErrorIs(t, err, ErrCacheMiss)
}
