// Package store is the read model the ranking engine scores from, plus the
// content writer the mutation paths go through. The gorm implementation backs
// the running service; the in-memory implementation backs tests and demos.
package store

import (
	"context"
	"errors"
	"time"
)

// EntityType names the kinds of entities that can trend
type EntityType string

const (
	EntityHashtag EntityType = "hashtag"
	EntityPost    EntityType = "post"
	EntityUser    EntityType = "user"
)

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	switch t {
	case EntityHashtag, EntityPost, EntityUser:
		return true
	}
	return false
}

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidInput = errors.New("store: invalid input")
)

// PostSummary is a post with its engagement counters and author
type PostSummary struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content,omitempty"`
	Hashtags       []string  `json:"hashtags,omitempty"`
	Likes          int       `json:"likes"`
	Comments       int       `json:"comments"`
	Reposts        int       `json:"reposts"`
	PublishedAt    time.Time `json:"published_at"`
}

// HashtagActivity aggregates one hashtag's posts inside a window
type HashtagActivity struct {
	HashtagID     string
	Name          string
	RecentPosts   int
	EngagementSum int
}

// UserActivity aggregates one user's posting and follower activity inside a window
type UserActivity struct {
	UserID        string
	Username      string
	PostCount     int
	EngagementSum int
	NewFollowers  int
}

// UserProfile is the cached profile view of a user
type UserProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio,omitempty"`
	PostCount      int       `json:"post_count"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// EngagementStore is the read-only view the ranking engine queries.
// Implementations must honor ctx cancellation: the ranking engine bounds
// every call with a timeout.
type EngagementStore interface {
	CountRecentPostsForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error)
	EngagementSumForHashtag(ctx context.Context, hashtagID string, since time.Time) (int, error)
	PostEngagementSnapshot(ctx context.Context, postID string) (PostSummary, error)
	UserActivitySnapshot(ctx context.Context, userID string, since time.Time) (UserActivity, error)
	FollowingIDsOf(ctx context.Context, userID string) (map[string]struct{}, error)

	// Candidate enumeration for a window
	HashtagActivity(ctx context.Context, since time.Time) ([]HashtagActivity, error)
	PostCandidates(ctx context.Context, since time.Time) ([]PostSummary, error)
	UserActivity(ctx context.Context, since time.Time) ([]UserActivity, error)

	// HourlyCounts returns hours buckets of activity, index 0 being the hour
	// ending at now and index i covering [now-(i+1)h, now-ih).
	HourlyCounts(ctx context.Context, entity EntityType, id string, hours int, now time.Time) ([]int, error)

	// HasHistory reports whether the user has authored anything
	HasHistory(ctx context.Context, userID string) (bool, error)
}

// FeedStore serves the cached timeline, profile, post and popular reads
type FeedStore interface {
	Timeline(ctx context.Context, userID string, limit int) ([]PostSummary, error)
	UserProfile(ctx context.Context, userID string) (UserProfile, error)
	PostEngagementSnapshot(ctx context.Context, postID string) (PostSummary, error)
	PopularPosts(ctx context.Context, since time.Time, limit int) ([]PostSummary, error)
}

// ContentWriter applies the mutations that invalidate cached rankings.
// The boolean results report whether state actually changed.
type ContentWriter interface {
	CreateUser(ctx context.Context, username, displayName string) (UserProfile, error)
	CreatePost(ctx context.Context, authorID, content string, hashtags []string) (PostSummary, error)
	Like(ctx context.Context, userID, postID string) (bool, error)
	Unlike(ctx context.Context, userID, postID string) (bool, error)
	Comment(ctx context.Context, userID, postID, body string) error
	Repost(ctx context.Context, userID, postID string) (bool, error)
	Follow(ctx context.Context, followerID, followingID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID string) (bool, error)
}

// Store is everything the service needs from the content database
type Store interface {
	EngagementStore
	FeedStore
	ContentWriter
}

// bucketIndex maps an event timestamp onto the hourly bucket layout of HourlyCounts
func bucketIndex(now, at time.Time, hours int) (int, bool) {
	if at.After(now) {
		return 0, false
	}
	idx := int(now.Sub(at) / time.Hour)
	if idx >= hours {
		return 0, false
	}
	return idx, true
}

// engagementOf is the unweighted engagement sum used for hashtag and user aggregates
func engagementOf(likes, comments, reposts int) int {
	return likes + comments + reposts
}
