package middleware

import (
	"context"
	"log/slog"

	"rentcar/internal/app/commands"
	"rentcar/internal/app/outbox"
)

// OutboxFlush nudges the relay after a command committed. The records are
// already durable, so a failed flush is logged and the result still returned.
func OutboxFlush(box outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
