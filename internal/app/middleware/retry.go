package middleware

import (
	"context"
	"errors"
	"time"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/uow"
)

// RetryPolicy bounds how often a command is re-run after losing a version race.
type RetryPolicy struct {
	Attempts int
	Backoff  []time.Duration
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return 3
	}
	return p.Attempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt < len(p.Backoff) {
		return p.Backoff[attempt]
	}
	return p.Backoff[len(p.Backoff)-1]
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry re-dispatches a command whose commit failed with
// uow.ErrConcurrentUpdate. Each attempt re-reads state, so the overlap check
// always runs against the latest calendar.
func Retry(policy RetryPolicy) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			limit := policy.attempts()
			var lastErr error
			for attempt := 0; attempt < limit; attempt++ {
				if attempt > 0 {
					if err := policy.sleep(ctx, policy.delay(attempt-1)); err != nil {
						return nil, apperrors.ConcurrencyExhausted(attempt, errors.Join(lastErr, err))
					}
				}
				res, err := nextFn(ctx, cmd)
				if err == nil {
					return res, nil
				}
				if !errors.Is(err, uow.ErrConcurrentUpdate) {
					return nil, err
				}
				lastErr = err
			}
			return nil, apperrors.ConcurrencyExhausted(limit, lastErr)
		})
	}
}
