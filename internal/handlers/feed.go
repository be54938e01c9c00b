package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"github.com/zfogg/sidechain/ranking/internal/util"
)

// GetTimeline handles GET /users/:id/timeline
func (h *Handlers) GetTimeline(c *gin.Context) {
	limit, apiErr := util.QueryInt(c, "limit", trending.DefaultLimit)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}
	res, err := h.feed.GetTimeline(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondListError(c, err, "timeline")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetUserProfile handles GET /users/:id/profile
func (h *Handlers) GetUserProfile(c *gin.Context) {
	profile, meta, err := h.feed.GetUserProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile, "cached": meta.Cached, "degraded": meta.Stale})
}

// GetPost handles GET /posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	post, meta, err := h.feed.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "cached": meta.Cached, "degraded": meta.Stale})
}

// GetPopularPosts handles GET /posts/popular
func (h *Handlers) GetPopularPosts(c *gin.Context) {
	limit, apiErr := util.QueryInt(c, "limit", trending.DefaultLimit)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}
	res, err := h.feed.GetPopularPosts(c.Request.Context(), limit)
	if err != nil {
		respondListError(c, err, "popular posts")
		return
	}
	c.JSON(http.StatusOK, res)
}
