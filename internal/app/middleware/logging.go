package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/queries"
)

func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		return nil
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), start, err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		return nil
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), start, err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, typ, key string, start time.Time, err error) {
	if err == nil {
		logger.DebugContext(ctx, typ+" handled", "key", key, "duration", time.Since(start))
		return
	}
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindPersistence, apperrors.KindInternal:
		logger.ErrorContext(ctx, typ+" failed", "key", key, "kind", kind, "duration", time.Since(start), "error", err)
	default:
		logger.InfoContext(ctx, typ+" rejected", "key", key, "kind", kind, "duration", time.Since(start), "error", err)
	}
}
