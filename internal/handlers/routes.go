package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/middleware"
)

// RegisterRoutes mounts the API under api. Manual refresh and invalidation
// share one limiter; mutations are limited per acting user.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	refreshLimit := middleware.NewRateLimiter(middleware.RefreshRateLimitConfig())
	writeLimit := middleware.NewRateLimiter(middleware.WriteRateLimitConfig())

	t := api.Group("/trending")
	{
		t.GET("/hashtags", h.GetTrendingHashtags)
		t.GET("/posts", h.GetTrendingPosts)
		t.GET("/users", h.GetTrendingUsers)
		t.GET("/personalized", h.GetPersonalizedTrending)
		t.GET("/velocity/:type/:id", h.GetTrendVelocity)
		t.GET("/stats", h.GetTrendingStats)
		t.POST("/refresh", refreshLimit, h.RefreshTrending)
	}

	api.POST("/cache/invalidate", refreshLimit, h.InvalidateCache)

	api.GET("/posts/popular", h.GetPopularPosts)
	api.GET("/posts/:id", h.GetPost)
	api.GET("/users/:id/timeline", h.GetTimeline)
	api.GET("/users/:id/profile", h.GetUserProfile)
	api.POST("/users", writeLimit, h.CreateUser)

	w := api.Group("", middleware.RequireActor(), writeLimit)
	{
		w.POST("/posts", h.CreatePost)
		w.POST("/posts/:id/like", h.LikePost)
		w.DELETE("/posts/:id/like", h.UnlikePost)
		w.POST("/posts/:id/comments", h.CommentOnPost)
		w.POST("/posts/:id/repost", h.RepostPost)
		w.POST("/users/:id/follow", h.FollowUser)
		w.DELETE("/users/:id/follow", h.UnfollowUser)
	}
}
