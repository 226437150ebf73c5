package middleware

import (
	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"
	"campus-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error,
// mapping it through the relay error taxonomy.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		message := err.Error()
		if status >= 500 {
			l.With(c.Request.Context()).Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			message = "internal server error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, services.ErrorCode(err)))
	}
}
