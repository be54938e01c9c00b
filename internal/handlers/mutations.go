package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/middleware"
	"github.com/zfogg/sidechain/ranking/internal/util"
)

// CreateUser handles POST /users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "username is required")
		return
	}

	user, err := h.social.CreateUser(c.Request.Context(), req.Username, req.DisplayName)
	if err != nil {
		respondError(c, err, "user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// CreatePost handles POST /posts for the acting user
func (h *Handlers) CreatePost(c *gin.Context) {
	var req struct {
		Content  string   `json:"content" binding:"required"`
		Hashtags []string `json:"hashtags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "content is required")
		return
	}

	post, err := h.social.CreatePost(c.Request.Context(), middleware.Actor(c), req.Content, req.Hashtags)
	if err != nil {
		respondError(c, err, "author")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// LikePost handles POST /posts/:id/like
func (h *Handlers) LikePost(c *gin.Context) {
	changed, err := h.social.Like(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true, "changed": changed})
}

// UnlikePost handles DELETE /posts/:id/like
func (h *Handlers) UnlikePost(c *gin.Context) {
	changed, err := h.social.Unlike(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false, "changed": changed})
}

// CommentOnPost handles POST /posts/:id/comments
func (h *Handlers) CommentOnPost(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "body is required")
		return
	}

	if err := h.social.Comment(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Body); err != nil {
		respondError(c, err, "post")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"commented": true})
}

// RepostPost handles POST /posts/:id/repost
func (h *Handlers) RepostPost(c *gin.Context) {
	changed, err := h.social.Repost(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reposted": true, "changed": changed})
}

// FollowUser handles POST /users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	changed, err := h.social.Follow(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true, "changed": changed})
}

// UnfollowUser handles DELETE /users/:id/follow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	changed, err := h.social.Unfollow(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false, "changed": changed})
}
