package cache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisBackendSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	backend *RedisBackend
	ctx     context.Context
}

func (s *RedisBackendSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.backend = s.newBackend()
	s.ctx = context.Background()
}

func (s *RedisBackendSuite) newBackend() *RedisBackend {
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	return NewRedisBackendFromClient(client, "")
}

func (s *RedisBackendSuite) TestGetMissIsCacheMiss() {
	_, err := s.backend.Get(s.ctx, "post:missing")
	s.ErrorIs(err, ErrCacheMiss)

	_, _, err = s.backend.GetWithTTL(s.ctx, "post:missing")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *RedisBackendSuite) TestGetWithTTL() {
	s.Require().NoError(s.backend.Set(s.ctx, "post:p1", []byte("v1"), time.Minute))
	v, ttl, err := s.backend.GetWithTTL(s.ctx, "post:p1")
	s.Require().NoError(err)
	s.Equal([]byte("v1"), v)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)

	s.Require().NoError(s.backend.Set(s.ctx, "post:p2", []byte("v2"), 0))
	_, ttl, err = s.backend.GetWithTTL(s.ctx, "post:p2")
	s.Require().NoError(err)
	s.Equal(time.Duration(0), ttl, "no expiry")
}

func (s *RedisBackendSuite) TestSetTrackedWritesValueAndKeySet() {
	s.Require().NoError(s.backend.SetTracked(s.ctx, NamespacePost, "post:p1", []byte("v1"), time.Minute))

	got, err := s.mr.Get("post:p1")
	s.Require().NoError(err)
	s.Equal("v1", got)
	members, err := s.mr.Members("keys:post")
	s.Require().NoError(err)
	s.Equal([]string{"post:p1"}, members)
	s.Greater(s.mr.TTL("keys:post"), 24*time.Hour)
}

func (s *RedisBackendSuite) TestLayerInvalidatesThroughKeySet() {
	layer := NewLayer(s.backend, Options{})
	for _, key := range []string{TrendingPostsKey(10, 24), TrendingPostsKey(20, 24), TrendingHashtagsKey(10, 24)} {
		s.Require().NoError(layer.Set(s.ctx, key, []string{"x"}, TrendingTTL))
	}

	n, err := layer.Invalidate(s.ctx, "trending:posts:*")
	s.Require().NoError(err)
	s.Equal(2, n)
	s.False(s.mr.Exists(TrendingPostsKey(10, 24)))
	s.False(s.mr.Exists(TrendingPostsKey(20, 24)))
	s.True(s.mr.Exists(TrendingHashtagsKey(10, 24)))

	members, err := s.mr.Members("keys:trending")
	s.Require().NoError(err)
	s.Equal([]string{TrendingHashtagsKey(10, 24)}, members)
}

func (s *RedisBackendSuite) TestMembersScansWhenKeySetMissing() {
	layer := NewLayer(s.backend, Options{})
	s.Require().NoError(layer.Set(s.ctx, TrendingPostsKey(10, 24), []string{"x"}, TrendingTTL))
	s.Require().NoError(layer.Set(s.ctx, TrendingUsersKey(10, 24), []string{"x"}, TrendingTTL))
	s.True(s.mr.Del("keys:trending"))

	members, err := s.backend.Members(s.ctx, NamespaceTrending)
	s.Require().NoError(err)
	sort.Strings(members)
	s.Equal([]string{TrendingPostsKey(10, 24), TrendingUsersKey(10, 24)}, members)

	n, err := layer.Invalidate(s.ctx, "trending:posts:*")
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(s.mr.Exists(TrendingPostsKey(10, 24)))
	s.True(s.mr.Exists(TrendingUsersKey(10, 24)))
}

func (s *RedisBackendSuite) TestMembersPrunesExpiredKeys() {
	s.Require().NoError(s.backend.SetTracked(s.ctx, NamespaceTimeline, TimelineKey("u1", 20), []byte("a"), time.Minute))
	s.Require().NoError(s.backend.SetTracked(s.ctx, NamespaceTimeline, TimelineKey("u2", 20), []byte("b"), time.Hour))

	s.mr.FastForward(2 * time.Minute)

	members, err := s.backend.Members(s.ctx, NamespaceTimeline)
	s.Require().NoError(err)
	s.Equal([]string{TimelineKey("u2", 20)}, members)

	stored, err := s.mr.Members("keys:timeline")
	s.Require().NoError(err)
	s.Equal([]string{TimelineKey("u2", 20)}, stored, "expired member removed from the set")
}

func (s *RedisBackendSuite) TestUntrack() {
	s.Require().NoError(s.backend.Track(s.ctx, NamespacePost, "post:p1"))
	s.Require().NoError(s.backend.Track(s.ctx, NamespacePost, "post:p2"))
	s.Require().NoError(s.backend.Untrack(s.ctx, NamespacePost, "post:p1"))
	s.NoError(s.backend.Untrack(s.ctx, NamespacePost))

	members, err := s.mr.Members("keys:post")
	s.Require().NoError(err)
	s.Equal([]string{"post:p2"}, members)
}

func (s *RedisBackendSuite) TestPublishSubscribe() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	got := make(chan string, 1)
	s.Require().NoError(s.backend.Subscribe(ctx, func(message string) { got <- message }))
	s.Require().NoError(s.newBackend().Publish(s.ctx, "origin\npost:p1"))

	select {
	case msg := <-got:
		s.Equal("origin\npost:p1", msg)
	case <-time.After(2 * time.Second):
		s.Fail("invalidation message not delivered")
	}
}

func (s *RedisBackendSuite) TestTieredBroadcastDropsPeerL1() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	l2a, l2b := s.newBackend(), s.newBackend()
	a := NewTieredBackend(NewMemoryBackend(100, time.Hour), l2a, time.Minute, l2a)
	b := NewTieredBackend(NewMemoryBackend(100, time.Hour), l2b, time.Minute, l2b)
	s.Require().NoError(a.Listen(ctx))
	s.Require().NoError(b.Listen(ctx))

	s.Require().NoError(a.Set(s.ctx, "post:p1", []byte("v1"), time.Hour))
	v, err := b.Get(s.ctx, "post:p1")
	s.Require().NoError(err)
	s.Equal([]byte("v1"), v)

	s.Require().NoError(a.Delete(s.ctx, "post:p1"))
	s.Eventually(func() bool {
		_, err := b.l1.Get(s.ctx, "post:p1")
		return err == ErrCacheMiss
	}, 2*time.Second, 10*time.Millisecond, "peer L1 copy dropped")

	_, err = b.Get(s.ctx, "post:p1")
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *RedisBackendSuite) TestTieredBackfillCappedByRedisTTL() {
	tiered := NewTieredBackend(NewMemoryBackend(100, time.Hour), s.backend, time.Hour, nil)
	s.Require().NoError(s.backend.Set(s.ctx, "post:p1", []byte("v1"), 5*time.Second))

	_, err := tiered.Get(s.ctx, "post:p1")
	s.Require().NoError(err)
	_, remaining, err := tiered.l1.GetWithTTL(s.ctx, "post:p1")
	s.Require().NoError(err)
	s.LessOrEqual(remaining, 5*time.Second)
}

func TestRedisBackendSuite(t *testing.T) {
	suite.Run(t, new(RedisBackendSuite))
}
