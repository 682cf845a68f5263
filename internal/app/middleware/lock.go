package middleware

import (
	"context"
	"time"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/locks"
)

// LockedCommand names the resource a command mutates.
type LockedCommand interface {
	commands.Command
	LockKey() string
}

// Lock holds the per-resource mutex around the inner pipeline. A zero timeout
// waits as long as the request context allows.
func Lock(m *locks.KeyedMutex, timeout time.Duration) CommandMiddleware {
	if m == nil {
		panic("middleware: keyed mutex required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			locked, ok := cmd.(LockedCommand)
			if !ok || locked.LockKey() == "" {
				return nextFn(ctx, cmd)
			}
			waitCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			unlock, err := m.Lock(waitCtx, locked.LockKey())
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindConcurrencyExhausted, "timed out waiting for resource lock")
			}
			defer unlock()
			return nextFn(ctx, cmd)
		})
	}
}
