package middleware

import (
	"context"
	"net/http"
	"strings"

	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"
	"campus-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Authenticator resolves a bearer token to the caller's user id.
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.Authenticate(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), userID)
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
