package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/sidechain/ranking/internal/errors"
)

// ActorHeader names the user a mutation acts as. Authentication happens
// upstream; the header is trusted as given.
const ActorHeader = "X-User-ID"

// ActorMiddleware copies the acting user id into the gin context
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
			c.Set("user_id", actor)
		}
		c.Next()
	}
}

// RequireActor rejects requests that carry no acting user
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Actor(c) == "" {
			apiErr := apierrors.BadRequest("missing " + ActorHeader + " header")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apiErr})
			return
		}
		c.Next()
	}
}

// Actor returns the acting user id, or ""
func Actor(c *gin.Context) string {
	return c.GetString("user_id")
}
