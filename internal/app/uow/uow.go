package uow

import (
	"context"
	"errors"

	"rentcar/internal/app/outbox"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
)

var (
	// ErrConcurrentUpdate is returned by a repository or Commit when another
	// writer changed the same calendar first. The whole attempt may be retried.
	ErrConcurrentUpdate  = errors.New("uow: concurrent update detected")
	ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")
)

// UnitOfWork coordinates repositories inside a transaction boundary. Writes
// made through it become visible only after Commit succeeds.
type UnitOfWork interface {
	Cars() domaincars.Repository
	Availability() domainavailability.Repository
	Bookings() domainbooking.Ledger
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (a Mongo
// session, a gorm transaction) through the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Begin starts a unit and returns the context repositories must use with it.
func Begin(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(ContextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

// BeginReadOnly reuses the unit already in ctx or opens a read-only one. The
// returned cleanup is nil when the unit was inherited.
func BeginReadOnly(ctx context.Context, factory UoWFactory) (UnitOfWork, context.Context, func(), error) {
	if unit, ok := FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	unit, execCtx, err := Begin(ctx, factory, TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}
