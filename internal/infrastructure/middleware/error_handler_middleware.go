package middleware

import (
	"errors"
	"net/http"

	"playgrid/internal/core/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps engine sentinel errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrStreamNotFound), errors.Is(err, domain.ErrSurfaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStreamExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQualityCooldown), errors.Is(err, domain.ErrRecoveryInFlight):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrEngineClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware converts errors attached to the Gin context into
// structured responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := statusFor(err)

		if status >= 500 {
			logger.Errorw("request failed",
				"error", err,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
