package invoke

import (
	"context"
	"log/slog"
)

// Caller performs a fully retried call (an Invoker bound to an endpoint
// and payload) producing a result of type T.
type Caller[T any] func(ctx context.Context) (T, error)

// WithFallback tries primary and, if it errors, tries fallback. The two
// legs run strictly in sequence: the fallback is never started until
// the primary has exhausted its own budget, so quota is not burned on
// both endpoints at once.
//
// If the fallback also fails, its error is returned as-is; callers that
// produce visual artifacts are expected to substitute a placeholder
// rather than surface the failure to the end user.
func WithFallback[T any](ctx context.Context, logger *slog.Logger, primary, fallback Caller[T]) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	out, err := primary(ctx)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		var zero T
		return zero, ctx.Err()
	}

	logger.Warn("primary endpoint failed, promoting to fallback", "error", err)
	return fallback(ctx)
}
