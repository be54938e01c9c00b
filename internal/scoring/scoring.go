// Package scoring holds the pure trend and engagement formulas. Nothing here
// touches the store or the cache; every function is deterministic given its
// inputs and returns 0 rather than an error for empty activity.
package scoring

import (
	"sort"
	"time"
)

// Post score weights
const (
	LikeWeight      = 1.0
	CommentWeight   = 2.0
	RepostWeight    = 1.5
	AgePenaltyPerHr = -0.1
)

// User score weights
const (
	UserPostWeight       = 2.0
	UserEngagementWeight = 0.1
	UserFollowerWeight   = 1.0
)

// PersonalizedFollowBonus is added to posts authored by users the reader follows
const PersonalizedFollowBonus = 5.0

// EntityType names the kind of entity a snapshot describes
type EntityType string

const (
	Hashtag EntityType = "hashtag"
	Post    EntityType = "post"
	User    EntityType = "user"
)

// EngagementSnapshot is the activity of one entity inside one query window
type EngagementSnapshot struct {
	EntityType    EntityType
	EntityID      string
	RecentCount   int
	LikeCount     int
	CommentCount  int
	RepostCount   int
	FollowerDelta int
	EngagementSum int
	PublishedAt   time.Time
	WindowStart   time.Time
	WindowEnd     time.Time
}

// TrendScore is a ranked score derived from a single snapshot window
type TrendScore struct {
	EntityID   string    `json:"id"`
	RawScore   float64   `json:"score"`
	Rank       int       `json:"rank"`
	ComputedAt time.Time `json:"computed_at"`
}

// HashtagWeights weighs recent post volume against engagement for hashtags
type HashtagWeights struct {
	Recent     float64
	Engagement float64
}

// DefaultHashtagWeights returns the 0.6 / 0.4 split
func DefaultHashtagWeights() HashtagWeights {
	return HashtagWeights{Recent: 0.6, Engagement: 0.4}
}

// ScoreHashtag scores a hashtag by recent post count and engagement sum
func ScoreHashtag(s EngagementSnapshot, w HashtagWeights) float64 {
	return float64(s.RecentCount)*w.Recent + float64(s.EngagementSum)*w.Engagement
}

// PostEngagement is the weighted engagement of a post without the age term
func PostEngagement(s EngagementSnapshot) float64 {
	return float64(s.LikeCount)*LikeWeight +
		float64(s.CommentCount)*CommentWeight +
		float64(s.RepostCount)*RepostWeight
}

// ScorePost applies a linear age penalty to the post's weighted engagement.
// Posts with a publish time after now are treated as zero hours old.
func ScorePost(s EngagementSnapshot, now time.Time) float64 {
	hours := 0.0
	if !s.PublishedAt.IsZero() && now.After(s.PublishedAt) {
		hours = now.Sub(s.PublishedAt).Hours()
	}
	return PostEngagement(s) + hours*AgePenaltyPerHr
}

// ScoreUser scores a user by posting volume, engagement and follower growth
func ScoreUser(s EngagementSnapshot) float64 {
	return float64(s.RecentCount)*UserPostWeight +
		float64(s.EngagementSum)*UserEngagementWeight +
		float64(s.FollowerDelta)*UserFollowerWeight
}

// ScoreVelocity averages the differences between adjacent hourly buckets.
// buckets[0] is the most recent hour; each step subtracts the newer bucket
// from the older one, so [5, 3, 1] yields ((3-5) + (1-3)) / 2 = -2.
func ScoreVelocity(buckets []int) float64 {
	if len(buckets) < 2 {
		return 0
	}
	total := 0
	for i := 1; i < len(buckets); i++ {
		total += buckets[i] - buckets[i-1]
	}
	return float64(total) / float64(len(buckets)-1)
}

// InterpretVelocity labels a raw velocity value
func InterpretVelocity(v float64) string {
	switch {
	case v >= 10:
		return "rapidly rising"
	case v > 0:
		return "rising"
	case v == 0:
		return "stable"
	case v > -10:
		return "declining"
	default:
		return "rapidly declining"
	}
}

// Rank orders scores by RawScore descending, breaking ties by EntityID
// ascending, and assigns 1-based ranks. The input slice is sorted in place.
func Rank(scores []TrendScore) []TrendScore {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].RawScore != scores[j].RawScore {
			return scores[i].RawScore > scores[j].RawScore
		}
		return scores[i].EntityID < scores[j].EntityID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}
