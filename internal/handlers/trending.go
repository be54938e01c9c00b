package handlers

import (
	stderrors "errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/errors"
	"github.com/zfogg/sidechain/ranking/internal/middleware"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"github.com/zfogg/sidechain/ranking/internal/util"
)

// listQuery reads limit and timeframe with their defaults
func listQuery(c *gin.Context) (limit, timeframe int, ok bool) {
	limit, apiErr := util.QueryInt(c, "limit", trending.DefaultLimit)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return 0, 0, false
	}
	timeframe, apiErr = util.QueryInt(c, "timeframe", trending.DefaultTimeframe)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return 0, 0, false
	}
	return limit, timeframe, true
}

// GetTrendingHashtags handles GET /trending/hashtags
func (h *Handlers) GetTrendingHashtags(c *gin.Context) {
	limit, timeframe, ok := listQuery(c)
	if !ok {
		return
	}
	res, err := h.trending.GetTrendingHashtags(c.Request.Context(), limit, timeframe)
	if err != nil {
		respondListError(c, err, "trending hashtags")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTrendingPosts handles GET /trending/posts
func (h *Handlers) GetTrendingPosts(c *gin.Context) {
	limit, timeframe, ok := listQuery(c)
	if !ok {
		return
	}
	res, err := h.trending.GetTrendingPosts(c.Request.Context(), limit, timeframe)
	if err != nil {
		respondListError(c, err, "trending posts")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTrendingUsers handles GET /trending/users
func (h *Handlers) GetTrendingUsers(c *gin.Context) {
	limit, timeframe, ok := listQuery(c)
	if !ok {
		return
	}
	res, err := h.trending.GetTrendingUsers(c.Request.Context(), limit, timeframe)
	if err != nil {
		respondListError(c, err, "trending users")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetPersonalizedTrending handles GET /trending/personalized.
// user_id defaults to the acting user.
func (h *Handlers) GetPersonalizedTrending(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = middleware.Actor(c)
	}
	limit, apiErr := util.QueryInt(c, "limit", trending.DefaultLimit)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}

	res, err := h.trending.GetPersonalizedTrending(c.Request.Context(), userID, limit)
	if err != nil {
		respondListError(c, err, "personalized trending")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTrendVelocity handles GET /trending/velocity/:type/:id
func (h *Handlers) GetTrendVelocity(c *gin.Context) {
	hours, apiErr := util.QueryInt(c, "hours", trending.DefaultTimeframe)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}

	res, err := h.trending.GetTrendVelocity(c.Request.Context(), c.Param("type"), c.Param("id"), hours)
	if err != nil {
		respondError(c, err, "trend velocity")
		return
	}
	c.JSON(http.StatusOK, res)
}

// RefreshTrending handles POST /trending/refresh
func (h *Handlers) RefreshTrending(c *gin.Context) {
	refreshedAt, err := h.trending.RefreshAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "trending refresh")
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed_at": refreshedAt.Format(time.RFC3339)})
}

// GetTrendingStats handles GET /trending/stats
func (h *Handlers) GetTrendingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.trending.GetStats(c.Request.Context()))
}

// InvalidateCache handles POST /cache/invalidate with a manual invalidation event
func (h *Handlers) InvalidateCache(c *gin.Context) {
	var req struct {
		Patterns []string `json:"patterns" binding:"required,min=1,dive,required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "patterns must be a non-empty list of keys or glob patterns")
		return
	}

	deleted, err := h.cache.Apply(c.Request.Context(), cache.Manual(req.Patterns...))
	if err != nil {
		_ = c.Error(err)
		if stderrors.Is(err, path.ErrBadPattern) {
			util.RespondWithAPIError(c, errors.InvalidParameter("patterns", err.Error()))
			return
		}
		util.RespondWithAPIError(c, errors.ServiceUnavailable("cache"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "patterns": req.Patterns})
}
