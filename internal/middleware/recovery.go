package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"go.uber.org/zap"
)

// Recovery returns a middleware that turns panics into 500 responses
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.Stack("stacktrace"),
				)
				apierrors.InternalError(c, "")
				c.Abort()
			}
		}()

		c.Next()
	}
}
