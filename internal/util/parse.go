package util

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/errors"
)

// QueryInt reads an integer query parameter. A missing parameter yields
// defaultValue; a malformed one is an INVALID_PARAMETER error. Range checks
// are left to the service.
func QueryInt(c *gin.Context, name string, defaultValue int) (int, *errors.APIError) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.InvalidParameter(name, "must be an integer")
	}
	return val, nil
}
