package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"playgrid/pkg/logger"
)

// LoggingMiddleware records one structured entry per request, correlated by
// the request ID placed in the context upstream.
func LoggingMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cl.LogRequest(
			c.Request.Context(),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}
