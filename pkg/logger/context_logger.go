package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextLogger decorates log entries with request-scoped correlation
// fields carried in a context.
type ContextLogger struct {
	logger *zap.Logger
}

// NewContextLogger creates a new context logger
func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{
		logger: logger,
	}
}

// WithContext returns a logger carrying the request ID from ctx, if set.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	if requestID, ok := ctx.Value("request_id").(string); ok && requestID != "" {
		return cl.logger.With(zap.String("request_id", requestID))
	}
	return cl.logger
}

// LogRequest logs one completed HTTP request with its correlation fields.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMS int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMS),
	)
}
