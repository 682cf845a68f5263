package middleware

import (
	"context"
	"errors"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs the handler inside a unit of work and commits only when
// the handler succeeds. Commit failures other than a lost version race are
// reported as persistence errors.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, execCtx, err := uow.Begin(ctx, factory, opts)
			if err != nil {
				return nil, apperrors.Persistence(err)
			}
			finished := false
			defer func() {
				if !finished {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			// Commit releases the unit whether or not it succeeds.
			finished = true
			if err := unit.Commit(execCtx); err != nil {
				if errors.Is(err, uow.ErrConcurrentUpdate) {
					return nil, err
				}
				return nil, apperrors.Persistence(err)
			}
			return res, nil
		})
	}
}
