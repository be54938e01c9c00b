// Package ranking builds thresholded, scored and ranked candidate lists from
// engagement store snapshots.
package ranking

import "time"

// HashtagItem is one ranked hashtag
type HashtagItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
	RecentPosts   int     `json:"recent_posts"`
	EngagementSum int     `json:"engagement_sum"`
}

// Author identifies the author of a ranked post
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PostItem is one ranked post
type PostItem struct {
	ID          string    `json:"id"`
	Score       float64   `json:"score"`
	Rank        int       `json:"rank"`
	Author      Author    `json:"author"`
	Likes       int       `json:"likes"`
	Comments    int       `json:"comments"`
	Reposts     int       `json:"reposts"`
	Hashtags    []string  `json:"hashtags,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Followed    bool      `json:"followed,omitempty"`
}

// UserItem is one ranked user
type UserItem struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// VelocityResult is the hourly trend of a single entity.
// Buckets[0] is the most recent hour. GrowthPercent compares the newer half
// of the window against the older half. Score is the entity's trend score
// over the same window, thresholds aside.
type VelocityResult struct {
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	Hours          int       `json:"hours"`
	Buckets        []int     `json:"buckets"`
	Velocity       float64   `json:"velocity"`
	Interpretation string    `json:"interpretation"`
	GrowthPercent  float64   `json:"growth_percent"`
	Score          float64   `json:"score"`
	ComputedAt     time.Time `json:"computed_at"`
}
