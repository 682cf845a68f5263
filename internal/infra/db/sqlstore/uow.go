package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	appoutbox "rentcar/internal/app/outbox"
	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
)

var (
	ErrFactoryMisconfigured = errors.New("sqlstore: unit of work factory missing database")
	ErrReadOnly             = errors.New("sqlstore: write in read-only unit of work")
	ErrUnitClosed           = errors.New("sqlstore: unit of work already finished")
)

// Factory opens a database transaction per unit. Read-only units query the
// pool directly.
type Factory struct {
	DB     *gorm.DB
	Signal appoutbox.Flusher
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrFactoryMisconfigured
	}
	if opts.ReadOnly {
		return &Unit{db: f.DB, readOnly: true, signal: f.Signal}, nil
	}
	tx := f.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{db: tx, signal: f.Signal}, nil
}

type Unit struct {
	db       *gorm.DB
	readOnly bool
	done     bool
	signal   appoutbox.Flusher
}

func (u *Unit) Cars() domaincars.Repository { return &CarRepository{db: u.db} }

func (u *Unit) Availability() domainavailability.Repository {
	if u.readOnly {
		return readOnlyCalendars{&CalendarRepository{db: u.db}}
	}
	return &CalendarRepository{db: u.db}
}

func (u *Unit) Bookings() domainbooking.Ledger {
	if u.readOnly {
		return readOnlyLedger{&BookingRepository{db: u.db}}
	}
	return &BookingRepository{db: u.db}
}

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{u} }

func (u *Unit) Commit(context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	if err := u.db.Commit().Error; err != nil {
		if isSerializationFailure(err) {
			return uow.ErrConcurrentUpdate
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	return u.db.Rollback().Error
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	if o.u.readOnly {
		return ErrReadOnly
	}
	row, err := newOutboxRow(rec)
	if err != nil {
		return err
	}
	return o.u.db.WithContext(ctx).Create(&row).Error
}

func (o unitOutbox) Flush(ctx context.Context) error {
	if o.u.signal == nil {
		return nil
	}
	return o.u.signal.Flush(ctx)
}

type readOnlyCalendars struct{ *CalendarRepository }

func (readOnlyCalendars) Save(context.Context, *domainavailability.Calendar) error {
	return ErrReadOnly
}

type readOnlyLedger struct{ *BookingRepository }

func (readOnlyLedger) Append(context.Context, *domainbooking.Booking) error {
	return ErrReadOnly
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
