package handlers

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/errors"
	"github.com/zfogg/sidechain/ranking/internal/feed"
	"github.com/zfogg/sidechain/ranking/internal/social"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"github.com/zfogg/sidechain/ranking/internal/util"
)

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	trending *trending.Service
	feed     *feed.Service
	social   *social.Service
	cache    *cache.Layer
	checks   map[string]HealthCheck
}

// NewHandlers creates a new handlers instance
func NewHandlers(t *trending.Service, f *feed.Service, s *social.Service, c *cache.Layer) *Handlers {
	return &Handlers{
		trending: t,
		feed:     f,
		social:   s,
		cache:    c,
		checks:   make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a dependency check reported by /health
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// apiError maps a service error onto the API error it is reported as
func apiError(err error, resource string) *errors.APIError {
	var apiErr *errors.APIError
	var paramErr *trending.ParamError
	switch {
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.As(err, &paramErr):
		return errors.InvalidParameter(paramErr.Field, paramErr.Message)
	case stderrors.Is(err, trending.ErrInvalidParameter), stderrors.Is(err, store.ErrInvalidInput):
		return errors.BadRequest(err.Error())
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NotFound(resource)
	case stderrors.Is(err, store.ErrUnavailable):
		return errors.ServiceUnavailable("engagement store")
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout(resource + " lookup")
	default:
		return errors.InternalError("failed to load " + resource)
	}
}

func respondError(c *gin.Context, err error, resource string) {
	_ = c.Error(err)
	switch apiErr := apiError(err, resource); apiErr.Code {
	case errors.ErrNotFound:
		util.RespondNotFound(c, resource)
	case errors.ErrInternalError:
		util.RespondInternalError(c, apiErr.Message)
	default:
		util.RespondWithAPIError(c, apiErr)
	}
}

// respondListError answers list reads; store outages keep the list shape
func respondListError(c *gin.Context, err error, resource string) {
	_ = c.Error(err)
	apiErr := apiError(err, resource)
	if apiErr.Degraded {
		util.RespondDegradedList(c, apiErr)
		return
	}
	util.RespondWithAPIError(c, apiErr)
}
