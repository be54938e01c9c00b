package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/ranking/internal/store"
)

func newTestLayer(opts ...MemoryOption) (*Layer, *MemoryBackend) {
	backend := NewMemoryBackend(1000, time.Hour, opts...)
	return NewLayer(backend, Options{}), backend
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	var calls atomic.Int32

	compute := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a", "b"}, nil
	}

	first, meta, err := GetOrCompute(ctx, layer, TrendingPostsKey(10, 24), TrendingTTL, compute)
	require.NoError(t, err)
	assert.False(t, meta.Cached)

	second, meta, err := GetOrCompute(ctx, layer, TrendingPostsKey(10, 24), TrendingTTL, compute)
	require.NoError(t, err)
	assert.True(t, meta.Cached)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = GetOrCompute(ctx, layer, "trending:users:limit:5:tf:24", TrendingTTL, compute)
		}(i)
	}

	// let the callers pile up on the in-flight computation
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestGetOrCompute_StaleFallback(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	key := TrendingHashtagsKey(20, 24)

	_, _, err := GetOrCompute(ctx, layer, key, TrendingTTL, func(ctx context.Context) ([]string, error) {
		return []string{"go"}, nil
	})
	require.NoError(t, err)

	_, err = layer.Invalidate(ctx, key)
	require.NoError(t, err)

	down := fmt.Errorf("hashtag_activity: %w: %w", store.ErrUnavailable, errors.New("dial tcp: refused"))
	got, meta, err := GetOrCompute(ctx, layer, key, TrendingTTL, func(ctx context.Context) ([]string, error) {
		return nil, down
	})
	require.NoError(t, err)
	assert.True(t, meta.Stale)
	assert.Equal(t, []string{"go"}, got)
}

func TestGetOrCompute_NoStaleCopyPropagates(t *testing.T) {
	layer, _ := newTestLayer()

	_, meta, err := GetOrCompute(context.Background(), layer, TrendingPostsKey(5, 1), TrendingTTL, func(ctx context.Context) ([]string, error) {
		return nil, store.ErrUnavailable
	})
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.False(t, meta.Stale)
}

func TestGetOrCompute_OtherErrorsSkipStale(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	key := PostKey("p1")

	_, _, err := GetOrCompute(ctx, layer, key, PostDetailTTL, func(ctx context.Context) (string, error) { return "v1", nil })
	require.NoError(t, err)
	_, err = layer.Invalidate(ctx, key)
	require.NoError(t, err)

	_, _, err = GetOrCompute(ctx, layer, key, PostDetailTTL, func(ctx context.Context) (string, error) {
		return "", store.ErrNotFound
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetOrCompute_BackendErrorIsForcedMiss(t *testing.T) {
	layer, backend := newTestLayer()
	backend.SetFailure(errors.New("redis: connection pool timeout"))
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		v, meta, err := GetOrCompute(context.Background(), layer, TimelineKey("u1", 20), TimelineTTL, func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		assert.False(t, meta.Cached)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_RespectsTTL(t *testing.T) {
	layer, _ := newTestLayer()
	ctx := context.Background()
	var calls atomic.Int32
	compute := func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, _, err := GetOrCompute(ctx, layer, "popular:posts:limit:3", 20*time.Millisecond, compute)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	v, meta, err := GetOrCompute(ctx, layer, "popular:posts:limit:3", 20*time.Millisecond, compute)
	require.NoError(t, err)
	assert.False(t, meta.Cached)
	assert.Equal(t, 2, v)
}

func TestGetOrCompute_InvalidationDuringComputeSkipsWrite(t *testing.T) {
	layer, backend := newTestLayer()
	ctx := context.Background()
	key := TrendingPostsKey(10, 24)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		v, _, err := GetOrCompute(ctx, layer, key, TrendingTTL, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "computed before the post", nil
		})
		if err == nil && v != "computed before the post" {
			err = fmt.Errorf("unexpected value %q", v)
		}
		done <- err
	}()

	<-started
	_, err := layer.Invalidate(ctx, "trending:posts:*")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done, "caller still gets its result")

	ok, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "result computed across an invalidation is not cached")

	v, meta, err := GetOrCompute(ctx, layer, key, TrendingTTL, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, meta.Cached)
	assert.Equal(t, "fresh", v)
}

// orderBackend records the order of Track and Set calls
type orderBackend struct {
	Backend
	ops []string
}

func (o *orderBackend) Track(ctx context.Context, namespace, key string) error {
	o.ops = append(o.ops, "track "+key)
	return o.Backend.Track(ctx, namespace, key)
}

func (o *orderBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	o.ops = append(o.ops, "set "+key)
	return o.Backend.Set(ctx, key, value, ttl)
}

func TestLayerSet_TracksBeforeWriting(t *testing.T) {
	backend := &orderBackend{Backend: NewMemoryBackend(100, time.Hour)}
	layer := NewLayer(backend, Options{})

	require.NoError(t, layer.Set(context.Background(), "post:p1", "v", PostDetailTTL))
	require.GreaterOrEqual(t, len(backend.ops), 2)
	assert.Equal(t, []string{"track post:p1", "set post:p1"}, backend.ops[:2])
}

func TestMemoryBackend_SetTrackedIsListed(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(100, time.Hour)

	require.NoError(t, backend.SetTracked(ctx, "post", "post:p1", []byte("v"), time.Hour))
	members, err := backend.Members(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, []string{"post:p1"}, members)

	backend.SetFailure(errors.New("down"))
	assert.Error(t, backend.SetTracked(ctx, "post", "post:p2", []byte("v"), time.Hour))
}
