package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"go.uber.org/zap"
)

// Trigger names the mutation that produced an InvalidationEvent
type Trigger string

const (
	TriggerPostCreated   Trigger = "post_created"
	TriggerLikeChanged   Trigger = "like_changed"
	TriggerFollowChanged Trigger = "follow_changed"
	TriggerManual        Trigger = "manual"
)

// InvalidationEvent lists the keys and patterns a mutation makes stale.
// Patterns over-invalidate rather than risk leaving stale data reachable.
type InvalidationEvent struct {
	Trigger  Trigger
	Patterns []string
}

// PostCreated invalidates the author's profile, every timeline (followers
// see the post too), hourly velocities and every global ranking a new post
// can enter
func PostCreated(authorID string) InvalidationEvent {
	return InvalidationEvent{
		Trigger: TriggerPostCreated,
		Patterns: []string{
			"timeline:*",
			UserProfileKey(authorID),
			"trending:posts:*",
			"trending:hashtags:*",
			"trending:users:*",
			"trending:personalized:*",
			"trending:velocity:*",
			"popular:posts:*",
		},
	}
}

// LikeChanged covers likes, unlikes, comments and reposts on a post. Timeline
// items carry the post's counters, so every timeline goes too.
func LikeChanged(postID string) InvalidationEvent {
	return InvalidationEvent{
		Trigger: TriggerLikeChanged,
		Patterns: []string{
			PostKey(postID),
			"timeline:*",
			"trending:posts:*",
			"trending:hashtags:*",
			"trending:users:*",
			"trending:personalized:*",
			"trending:velocity:*",
			"popular:posts:*",
		},
	}
}

// FollowChanged covers follows and unfollows
func FollowChanged(followerID, followeeID string) InvalidationEvent {
	return InvalidationEvent{
		Trigger: TriggerFollowChanged,
		Patterns: []string{
			UserProfileKey(followerID),
			UserProfileKey(followeeID),
			fmt.Sprintf("timeline:user:%s:*", followerID),
			fmt.Sprintf("trending:personalized:user:%s:*", followerID),
			"trending:users:*",
		},
	}
}

// Manual invalidates arbitrary keys or patterns
func Manual(patterns ...string) InvalidationEvent {
	return InvalidationEvent{Trigger: TriggerManual, Patterns: patterns}
}

// Invalidate deletes an exact key, or every tracked key matching a glob
// pattern. It returns the number of keys deleted. A backend that cannot
// enumerate turns pattern invalidation into a logged no-op.
func (l *Layer) Invalidate(ctx context.Context, keyOrPattern string) (int, error) {
	if !isPattern(keyOrPattern) {
		ns := namespaceOf(keyOrPattern)
		l.bump(ns)
		if err := l.backend.Delete(ctx, keyOrPattern); err != nil {
			return 0, fmt.Errorf("delete %s: %w", keyOrPattern, err)
		}
		_ = l.backend.Untrack(ctx, ns, keyOrPattern)
		metrics.RecordCacheEviction(ns, 1)
		return 1, nil
	}

	if _, err := path.Match(keyOrPattern, ""); err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", keyOrPattern, err)
	}

	namespaces := []string{namespaceOf(keyOrPattern)}
	if isPattern(namespaces[0]) {
		namespaces = Namespaces
	}
	l.bump(namespaces...)

	deleted := 0
	for _, ns := range namespaces {
		n, err := l.invalidateNamespace(ctx, ns, keyOrPattern)
		deleted += n
		if errors.Is(err, ErrEnumerationUnsupported) {
			logger.Log.Info("Pattern invalidation unsupported by backend, relying on TTL expiry",
				zap.String("pattern", keyOrPattern),
				zap.String("backend", l.backend.Name()))
			return deleted, nil
		}
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (l *Layer) invalidateNamespace(ctx context.Context, ns, pattern string) (int, error) {
	members, err := l.backend.Members(ctx, ns)
	if err != nil {
		return 0, err
	}

	var matched []string
	for _, key := range members {
		if ok, _ := path.Match(pattern, key); ok {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	if err := l.backend.Delete(ctx, matched...); err != nil {
		return 0, fmt.Errorf("delete %d keys matching %s: %w", len(matched), pattern, err)
	}
	_ = l.backend.Untrack(ctx, ns, matched...)
	metrics.RecordCacheEviction(ns, len(matched))
	return len(matched), nil
}

// Apply invalidates every pattern of ev. All patterns are attempted; the
// returned error joins any failures.
func (l *Layer) Apply(ctx context.Context, ev InvalidationEvent) (int, error) {
	start := time.Now()
	metrics.RecordInvalidationEvent(string(ev.Trigger))

	var errs []error
	deleted := 0
	for _, p := range ev.Patterns {
		n, err := l.Invalidate(ctx, p)
		deleted += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	logger.Log.Debug("Applied invalidation event",
		logger.WithTrigger(string(ev.Trigger)),
		zap.Strings("patterns", ev.Patterns),
		zap.Int("deleted", deleted),
		logger.WithDuration(time.Since(start)))
	return deleted, errors.Join(errs...)
}
