package cache

import (
	"fmt"
	"strings"
	"time"
)

// TTLs per namespace. Each stays within the staleness tolerance of its read.
const (
	TimelineTTL    = 300 * time.Second
	UserProfileTTL = 600 * time.Second
	TrendingTTL    = 900 * time.Second
	PopularPostTTL = 600 * time.Second
	PostDetailTTL  = 600 * time.Second

	// DefaultStaleTTL keeps last-good copies for store outages
	DefaultStaleTTL = 24 * time.Hour
)

// Namespaces are the first segment of every cache key
const (
	NamespaceTrending = "trending"
	NamespaceTimeline = "timeline"
	NamespaceProfile  = "profile"
	NamespacePost     = "post"
	NamespacePopular  = "popular"
)

// Namespaces lists every namespace a key can be written under
var Namespaces = []string{
	NamespaceTrending,
	NamespaceTimeline,
	NamespaceProfile,
	NamespacePost,
	NamespacePopular,
}

// LastUpdatedKey holds the completion time of the last trending refresh
const LastUpdatedKey = "trending:last_updated"

// TrendingListPatterns match every computed trending list but not LastUpdatedKey
var TrendingListPatterns = []string{
	"trending:hashtags:*",
	"trending:posts:*",
	"trending:users:*",
	"trending:personalized:*",
	"trending:velocity:*",
}

const stalePrefix = "stale:"

func TrendingHashtagsKey(limit, timeframeHours int) string {
	return fmt.Sprintf("trending:hashtags:limit:%d:tf:%d", limit, timeframeHours)
}

func TrendingPostsKey(limit, timeframeHours int) string {
	return fmt.Sprintf("trending:posts:limit:%d:tf:%d", limit, timeframeHours)
}

func TrendingUsersKey(limit, timeframeHours int) string {
	return fmt.Sprintf("trending:users:limit:%d:tf:%d", limit, timeframeHours)
}

func PersonalizedKey(userID string, limit int) string {
	return fmt.Sprintf("trending:personalized:user:%s:limit:%d", userID, limit)
}

func VelocityKey(entityType, entityID string, hours int) string {
	return fmt.Sprintf("trending:velocity:%s:%s:hours:%d", entityType, entityID, hours)
}

func TimelineKey(userID string, limit int) string {
	return fmt.Sprintf("timeline:user:%s:limit:%d", userID, limit)
}

func UserProfileKey(userID string) string {
	return "profile:user:" + userID
}

func PostKey(postID string) string {
	return "post:" + postID
}

func PopularPostsKey(limit int) string {
	return fmt.Sprintf("popular:posts:limit:%d", limit)
}

// namespaceOf returns the first segment of a key or pattern
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

func staleKey(key string) string {
	return stalePrefix + key
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
