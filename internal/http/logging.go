package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger scopes the request logger, or fallback, to one handler
// operation. The account or event id resolved by the router is included.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	args := make([]any, 0, 6+len(attrs))
	args = append(args, "handler", handlerName)
	if operation != "" {
		args = append(args, "operation", operation)
	}
	if id, ok := ResourceIDFromContext(ctx); ok {
		args = append(args, "resource_id", id)
	}
	return logger.With(append(args, attrs...)...)
}
