package api

import (
	"strconv"

	"github.com/zfogg/sidechain/ranking/internal/cli/client"
	"github.com/zfogg/sidechain/ranking/internal/cli/logger"
)

// ListParams selects the size and window of a ranked list. Zero values
// leave the server defaults in place.
type ListParams struct {
	Limit     int
	Timeframe int
}

func (p ListParams) query() map[string]string {
	q := make(map[string]string)
	if p.Limit > 0 {
		q["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Timeframe > 0 {
		q["timeframe"] = strconv.Itoa(p.Timeframe)
	}
	return q
}

func getList[T any](path string, params map[string]string) (*ListResponse[T], error) {
	var response ListResponse[T]
	resp, err := client.GetClient().
		R().
		SetQueryParams(params).
		SetResult(&response).
		Get(path)
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetTrendingHashtags retrieves the ranked hashtag list
func GetTrendingHashtags(p ListParams) (*ListResponse[TrendingHashtag], error) {
	logger.Debug("Fetching trending hashtags", "limit", p.Limit, "timeframe", p.Timeframe)
	return getList[TrendingHashtag]("/api/v1/trending/hashtags", p.query())
}

// GetTrendingPosts retrieves the ranked post list
func GetTrendingPosts(p ListParams) (*ListResponse[TrendingPost], error) {
	logger.Debug("Fetching trending posts", "limit", p.Limit, "timeframe", p.Timeframe)
	return getList[TrendingPost]("/api/v1/trending/posts", p.query())
}

// GetTrendingUsers retrieves the ranked user list
func GetTrendingUsers(p ListParams) (*ListResponse[TrendingUser], error) {
	logger.Debug("Fetching trending users", "limit", p.Limit, "timeframe", p.Timeframe)
	return getList[TrendingUser]("/api/v1/trending/users", p.query())
}

// GetPersonalizedTrending retrieves trending posts boosted for userID.
// An empty userID falls back to the configured acting user.
func GetPersonalizedTrending(userID string, limit int) (*ListResponse[TrendingPost], error) {
	logger.Debug("Fetching personalized trending", "user_id", userID, "limit", limit)
	q := ListParams{Limit: limit}.query()
	if userID != "" {
		q["user_id"] = userID
	}
	return getList[TrendingPost]("/api/v1/trending/personalized", q)
}

// GetTrendVelocity retrieves the hourly trend of one hashtag, post or user
func GetTrendVelocity(entityType, id string, hours int) (*Velocity, error) {
	logger.Debug("Fetching trend velocity", "type", entityType, "id", id, "hours", hours)

	var response Velocity
	req := client.GetClient().R().
		SetPathParams(map[string]string{"type": entityType, "id": id}).
		SetResult(&response)
	if hours > 0 {
		req.SetQueryParam("hours", strconv.Itoa(hours))
	}
	resp, err := req.Get("/api/v1/trending/velocity/{type}/{id}")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response, nil
}

// RefreshTrending recomputes the warm trending lists
func RefreshTrending() (string, error) {
	var response struct {
		RefreshedAt string `json:"refreshed_at"`
	}
	resp, err := client.GetClient().R().SetResult(&response).Post("/api/v1/trending/refresh")
	if err := CheckResponse(resp, err); err != nil {
		return "", err
	}
	return response.RefreshedAt, nil
}

// GetTrendingStats reports the trending cache state
func GetTrendingStats() (*Stats, error) {
	var response Stats
	resp, err := client.GetClient().R().SetResult(&response).Get("/api/v1/trending/stats")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response, nil
}

// InvalidateCache deletes cached keys by exact key or glob pattern
func InvalidateCache(patterns []string) (int, error) {
	logger.Debug("Invalidating cache", "patterns", patterns)

	var response struct {
		Deleted int `json:"deleted"`
	}
	resp, err := client.GetClient().R().
		SetBody(map[string]interface{}{"patterns": patterns}).
		SetResult(&response).
		Post("/api/v1/cache/invalidate")
	if err := CheckResponse(resp, err); err != nil {
		return 0, err
	}
	return response.Deleted, nil
}

// GetHealth checks the service. An unhealthy service answers 503 with the
// same body, so the body is returned alongside the error.
func GetHealth() (*Health, error) {
	var response Health
	resp, err := client.GetClient().R().
		SetResult(&response).
		SetError(&response).
		Get("/health")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return &response, &APIError{Code: "UNHEALTHY", Message: response.Status, StatusCode: resp.StatusCode()}
	}
	return &response, nil
}
