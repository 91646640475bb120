package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/milestone-calendar/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCalculationLimit):
		return "calculation_limit"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return "storage"
	}

	return "unexpected"
}

// logOutcome records the result of a service operation at a level matching its kind.
func logOutcome(logger *slog.Logger, err error, msg string, attrs ...any) {
	if err == nil {
		logger.Info(msg, attrs...)
		return
	}
	attrs = append(attrs, "error_kind", ErrorKind(err), "error", err)
	switch ErrorKind(err) {
	case "validation", "not_found":
		logger.Warn(msg+" rejected", attrs...)
	case "calculation_limit":
		logger.Warn(msg+" truncated", attrs...)
	default:
		logger.Error(msg+" failed", attrs...)
	}
}
