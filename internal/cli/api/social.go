package api

import (
	"github.com/zfogg/sidechain/ranking/internal/cli/client"
	"github.com/zfogg/sidechain/ranking/internal/cli/logger"
)

// CreateUser registers a new user
func CreateUser(username, displayName string) (*User, error) {
	var response struct {
		User User `json:"user"`
	}
	resp, err := client.GetClient().R().
		SetBody(map[string]string{"username": username, "display_name": displayName}).
		SetResult(&response).
		Post("/api/v1/users")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response.User, nil
}

// CreatePost publishes a post as the acting user
func CreatePost(content string, hashtags []string) (*Post, error) {
	logger.Debug("Creating post", "hashtags", hashtags)

	var response struct {
		Post Post `json:"post"`
	}
	resp, err := client.GetClient().R().
		SetBody(map[string]interface{}{"content": content, "hashtags": hashtags}).
		SetResult(&response).
		Post("/api/v1/posts")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &response.Post, nil
}

// action sends a body-less engagement request and reports whether state changed
func action(method, path, id string) (bool, error) {
	var response struct {
		Changed bool `json:"changed"`
	}
	resp, err := client.GetClient().R().
		SetPathParam("id", id).
		SetResult(&response).
		Execute(method, path)
	if err := CheckResponse(resp, err); err != nil {
		return false, err
	}
	return response.Changed, nil
}

// LikePost likes a post as the acting user
func LikePost(postID string) (bool, error) {
	return action("POST", "/api/v1/posts/{id}/like", postID)
}

// UnlikePost removes the acting user's like
func UnlikePost(postID string) (bool, error) {
	return action("DELETE", "/api/v1/posts/{id}/like", postID)
}

// RepostPost reposts a post as the acting user
func RepostPost(postID string) (bool, error) {
	return action("POST", "/api/v1/posts/{id}/repost", postID)
}

// FollowUser follows a user as the acting user
func FollowUser(userID string) (bool, error) {
	return action("POST", "/api/v1/users/{id}/follow", userID)
}

// UnfollowUser unfollows a user as the acting user
func UnfollowUser(userID string) (bool, error) {
	return action("DELETE", "/api/v1/users/{id}/follow", userID)
}

// CommentOnPost comments on a post as the acting user
func CommentOnPost(postID, body string) error {
	resp, err := client.GetClient().R().
		SetPathParam("id", postID).
		SetBody(map[string]string{"body": body}).
		Post("/api/v1/posts/{id}/comments")
	return CheckResponse(resp, err)
}
