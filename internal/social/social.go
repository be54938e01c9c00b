// Package social applies content mutations and invalidates the cache
// entries each one makes stale.
package social

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxContentLength bounds post and comment bodies
const MaxContentLength = 2000

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the hashtags written inline in content
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// Service runs mutations through the content writer
type Service struct {
	writer  store.ContentWriter
	cache   *cache.Layer
	timeout time.Duration
}

// NewService creates the mutation service
func NewService(w store.ContentWriter, c *cache.Layer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{writer: w, cache: c, timeout: timeout}
}

// invalidateTimeout bounds the cache deletes that follow a committed write
const invalidateTimeout = 5 * time.Second

// invalidate applies ev; failures are logged since every entry also expires by TTL.
// The write has already committed, so a caller that goes away must not cancel it.
func (s *Service) invalidate(ctx context.Context, ev cache.InvalidationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if _, err := s.cache.Apply(ctx, ev); err != nil {
		logger.Log.Warn("Cache invalidation failed",
			logger.WithTrigger(string(ev.Trigger)),
			zap.Strings("patterns", ev.Patterns),
			zap.Error(err))
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &trending.ParamError{Field: field, Message: "is required"}
	}
	return nil
}

func bodyLength(field, value string) error {
	if err := required(field, value); err != nil {
		return err
	}
	if len(value) > MaxContentLength {
		return &trending.ParamError{Field: field, Message: "is too long"}
	}
	return nil
}

// CreateUser registers a user. No cached read depends on a user that does not exist yet.
func (s *Service) CreateUser(ctx context.Context, username, displayName string) (store.UserProfile, error) {
	if err := required("username", username); err != nil {
		return store.UserProfile{}, err
	}
	var u store.UserProfile
	err := store.Bounded(ctx, s.timeout, "create_user", func(ctx context.Context) (err error) {
		u, err = s.writer.CreateUser(ctx, strings.TrimSpace(username), displayName)
		return err
	})
	metrics.RecordMutation("create_user", err == nil)
	return u, err
}

// CreatePost stores a post tagged with the explicit hashtags plus those in its content
func (s *Service) CreatePost(ctx context.Context, authorID, content string, hashtags []string) (store.PostSummary, error) {
	if err := required("author_id", authorID); err != nil {
		return store.PostSummary{}, err
	}
	if err := bodyLength("content", content); err != nil {
		return store.PostSummary{}, err
	}

	ctx, span := telemetry.StartSpan(ctx, "social.create_post", attribute.String("user.id", authorID))
	defer span.End()

	tags := store.NormalizeHashtags(append(append([]string{}, hashtags...), ExtractHashtags(content)...))
	var post store.PostSummary
	err := store.Bounded(ctx, s.timeout, "create_post", func(ctx context.Context) (err error) {
		post, err = s.writer.CreatePost(ctx, authorID, content, tags)
		return err
	})
	metrics.RecordMutation("create_post", err == nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return store.PostSummary{}, err
	}

	s.invalidate(ctx, cache.PostCreated(authorID))
	logger.Log.Info("Post created",
		logger.WithPostID(post.ID),
		logger.WithUserID(authorID),
		zap.Strings("hashtags", post.Hashtags))
	return post, nil
}

// reaction runs a post engagement change and invalidates the post when state changed
func (s *Service) reaction(ctx context.Context, kind, userID, postID string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if err := required("user_id", userID); err != nil {
		return false, err
	}
	if err := required("post_id", postID); err != nil {
		return false, err
	}

	ctx, span := telemetry.StartSpan(ctx, "social."+kind,
		attribute.String("user.id", userID),
		attribute.String("post.id", postID))
	defer span.End()

	var changed bool
	err := store.Bounded(ctx, s.timeout, kind, func(ctx context.Context) (err error) {
		changed, err = fn(ctx)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	metrics.RecordMutation(kind, changed)
	if changed {
		s.invalidate(ctx, cache.LikeChanged(postID))
	}
	return changed, nil
}

// Like records a like; it reports false when the post was already liked
func (s *Service) Like(ctx context.Context, userID, postID string) (bool, error) {
	return s.reaction(ctx, "like", userID, postID, func(ctx context.Context) (bool, error) {
		return s.writer.Like(ctx, userID, postID)
	})
}

// Unlike removes a like; it reports false when there was none
func (s *Service) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	return s.reaction(ctx, "unlike", userID, postID, func(ctx context.Context) (bool, error) {
		return s.writer.Unlike(ctx, userID, postID)
	})
}

// Repost records a repost; it reports false when the post was already reposted
func (s *Service) Repost(ctx context.Context, userID, postID string) (bool, error) {
	return s.reaction(ctx, "repost", userID, postID, func(ctx context.Context) (bool, error) {
		return s.writer.Repost(ctx, userID, postID)
	})
}

// Comment adds a comment to a post
func (s *Service) Comment(ctx context.Context, userID, postID, body string) error {
	if err := bodyLength("body", body); err != nil {
		return err
	}
	_, err := s.reaction(ctx, "comment", userID, postID, func(ctx context.Context) (bool, error) {
		return true, s.writer.Comment(ctx, userID, postID, body)
	})
	return err
}

// follow runs a follow edge change and invalidates both users when state changed
func (s *Service) follow(ctx context.Context, kind, followerID, followingID string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if err := required("follower_id", followerID); err != nil {
		return false, err
	}
	if err := required("following_id", followingID); err != nil {
		return false, err
	}
	if followerID == followingID {
		return false, &trending.ParamError{Field: "following_id", Message: "cannot follow yourself"}
	}

	ctx, span := telemetry.StartSpan(ctx, "social."+kind,
		attribute.String("follower.id", followerID),
		attribute.String("following.id", followingID))
	defer span.End()

	var changed bool
	err := store.Bounded(ctx, s.timeout, kind, func(ctx context.Context) (err error) {
		changed, err = fn(ctx)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	metrics.RecordMutation(kind, changed)
	if changed {
		s.invalidate(ctx, cache.FollowChanged(followerID, followingID))
	}
	return changed, nil
}

// Follow creates a follow edge; it reports false when it already existed
func (s *Service) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.follow(ctx, "follow", followerID, followingID, func(ctx context.Context) (bool, error) {
		return s.writer.Follow(ctx, followerID, followingID)
	})
}

// Unfollow removes a follow edge; it reports false when there was none
func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.follow(ctx, "unfollow", followerID, followingID, func(ctx context.Context) (bool, error) {
		return s.writer.Unfollow(ctx, followerID, followingID)
	})
}
