package api

import (
	"strconv"

	"github.com/zfogg/sidechain/ranking/internal/cli/client"
	"github.com/zfogg/sidechain/ranking/internal/cli/logger"
)

func limitQuery(limit int) map[string]string {
	if limit <= 0 {
		return map[string]string{}
	}
	return map[string]string{"limit": strconv.Itoa(limit)}
}

// GetTimeline retrieves a user's timeline
func GetTimeline(userID string, limit int) (*ListResponse[Post], error) {
	logger.Debug("Fetching timeline", "user_id", userID, "limit", limit)
	return getList[Post]("/api/v1/users/"+userID+"/timeline", limitQuery(limit))
}

// GetPopularPosts retrieves the most engaged posts of the past week
func GetPopularPosts(limit int) (*ListResponse[Post], error) {
	logger.Debug("Fetching popular posts", "limit", limit)
	return getList[Post]("/api/v1/posts/popular", limitQuery(limit))
}

// GetUserProfile retrieves a user profile
func GetUserProfile(userID string) (*User, error) {
	var response struct {
		User User `json:"user"`
	}
	resp, err := client.GetClient().R().
		SetPathParam("id", userID).
		SetResult(&response).
		Get("/api/v1/users/{id}/profile")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response.User, nil
}

// GetPost retrieves a post with its engagement counters
func GetPost(postID string) (*Post, error) {
	var response struct {
		Post Post `json:"post"`
	}
	resp, err := client.GetClient().R().
		SetPathParam("id", postID).
		SetResult(&response).
		Get("/api/v1/posts/{id}")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response.Post, nil
}
