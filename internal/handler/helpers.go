package handler

import (
	"net/http"
	"strconv"

	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"
	relay_errors "campus-relay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// caller returns the authenticated user or writes 401.
func caller(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		c.Abort()
		return uuid.Nil, false
	}
	return userID, true
}

// fail hands err to the error middleware, which maps it to a status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, relay_errors.Invalidf("invalid integer %q", value)
	}
	return parsed, nil
}

func parseBool(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, relay_errors.Invalidf("invalid boolean %q", value)
	}
	return parsed, nil
}
