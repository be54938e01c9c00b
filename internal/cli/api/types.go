package api

import "time"

// ErrorResponse is the error body every failed request returns
type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
	Details  string `json:"details,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Author is the author block of a ranked post
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TrendingHashtag is one ranked hashtag
type TrendingHashtag struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
	RecentPosts   int     `json:"recent_posts"`
	EngagementSum int     `json:"engagement_sum"`
}

// TrendingPost is one ranked post
type TrendingPost struct {
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

// TrendingUser is one ranked user
type TrendingUser struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// ListResponse wraps every ranked or feed list
type ListResponse[T any] struct {
	Items      []T       `json:"items"`
	Degraded   bool      `json:"degraded"`
	Cached     bool      `json:"cached"`
	ComputedAt time.Time `json:"computed_at"`
}

// Velocity is the hourly activity trend of one entity
type Velocity struct {
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	Hours          int       `json:"hours"`
	Buckets        []int     `json:"buckets"`
	Velocity       float64   `json:"velocity"`
	Interpretation string    `json:"interpretation"`
	GrowthPercent  float64   `json:"growth_percent"`
	Score          float64   `json:"score"`
	ComputedAt     time.Time `json:"computed_at"`
	Degraded       bool      `json:"degraded"`
	Cached         bool      `json:"cached"`
}

// Stats reports the trending cache state
type Stats struct {
	Backend     string          `json:"backend"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	Warm        map[string]bool `json:"warm"`
	WarmLimit   int             `json:"warm_limit"`
	Timeframe   int             `json:"warm_timeframe"`
}

// Post is a post with its engagement counters
type Post struct {
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

// User is a user profile
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio,omitempty"`
	PostCount      int       `json:"post_count"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Health is the /health body
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
