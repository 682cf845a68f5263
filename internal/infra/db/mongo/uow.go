package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "rentcar/internal/app/outbox"
	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	infraoutbox "rentcar/internal/infra/outbox"
)

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrReadOnly                = errors.New("mongo: write in read-only unit of work")
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB     *mongo.Database
	Signal appoutbox.Flusher
	Outbox *infraoutbox.Store
}

// NewFactory creates the indexes once; units share the collections and differ
// only by the session carried in the context.
func NewFactory(db *mongo.Database, signal appoutbox.Flusher) *Factory {
	NewBookingRepository(db)
	return &Factory{DB: db, Signal: signal, Outbox: infraoutbox.NewStore(db)}
}

// Begin starts a session and a snapshot transaction for writes. Read-only
// units run without a transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	box := f.Outbox
	if box == nil {
		box = infraoutbox.NewStore(f.DB)
	}
	unit := &Unit{
		readOnly:  opts.ReadOnly,
		signal:    f.Signal,
		cars:      NewCarRepository(f.DB),
		calendars: NewCalendarRepository(f.DB),
		bookings:  &BookingRepository{col: f.DB.Collection("bookings")},
		outbox:    box,
	}
	if opts.ReadOnly {
		return unit, nil
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

type Unit struct {
	session  mongo.Session
	readOnly bool
	signal   appoutbox.Flusher

	cars      *CarRepository
	calendars *CalendarRepository
	bookings  *BookingRepository
	outbox    *infraoutbox.Store
}

func (u *Unit) Cars() domaincars.Repository { return u.cars }

func (u *Unit) Availability() domainavailability.Repository {
	if u.readOnly {
		return readOnlyCalendars{u.calendars}
	}
	return u.calendars
}

func (u *Unit) Bookings() domainbooking.Ledger {
	if u.readOnly {
		return readOnlyLedger{u.bookings}
	}
	return u.bookings
}

func (u *Unit) Outbox() appoutbox.Outbox { return unitOutbox{store: u.outbox, signal: u.signal} }

// Commit maps transient transaction failures to uow.ErrConcurrentUpdate so
// the attempt is retried against fresh state.
func (u *Unit) Commit(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	return commitTransaction(ctx, u.session)
}

// commitTransaction retries the commit once when the server cannot say
// whether it applied; commitTransaction is idempotent on the server.
func commitTransaction(ctx context.Context, session mongo.Session) error {
	err := session.CommitTransaction(ctx)
	if err != nil && hasErrorLabel(err, unknownCommitResultLabel) {
		err = session.CommitTransaction(ctx)
	}
	if err != nil && isWriteConflict(err) {
		return uow.ErrConcurrentUpdate
	}
	return err
}

const unknownCommitResultLabel = "UnknownTransactionCommitResult"

func hasErrorLabel(err error, label string) bool {
	var labeled mongo.LabeledError
	return errors.As(err, &labeled) && labeled.HasErrorLabel(label)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

func isWriteConflict(err error) bool {
	if hasErrorLabel(err, "TransientTransactionError") {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 112 {
		return true
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == 112 {
				return true
			}
		}
	}
	return false
}

type unitOutbox struct {
	store  *infraoutbox.Store
	signal appoutbox.Flusher
}

func (o unitOutbox) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	return o.store.Add(ctx, rec)
}

func (o unitOutbox) Flush(ctx context.Context) error {
	if o.signal == nil {
		return nil
	}
	return o.signal.Flush(ctx)
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
	_ uow.UoWFactory      = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
