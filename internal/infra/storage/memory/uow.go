package memory

import (
	"context"
	"errors"
	"time"

	appoutbox "rentcar/internal/app/outbox"
	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	infraoutbox "rentcar/internal/infra/outbox"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnly             = errors.New("memory: write in read-only unit of work")
	ErrDuplicateBooking     = errors.New("memory: booking id already exists")
)

// Factory opens units over a shared Store.
type Factory struct {
	Store  *Store
	Signal appoutbox.Flusher
}

func (f Factory) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:     f.Store,
		signal:    f.Signal,
		readOnly:  opts.ReadOnly,
		calendars: make(map[domaincars.CarID]stagedCalendar),
	}, nil
}

type stagedCalendar struct {
	expected int64
	days     daterange.DaySet
}

// Unit stages writes until Commit. Commit checks every staged calendar
// against the current version and applies all writes or none.
type Unit struct {
	store    *Store
	signal   appoutbox.Flusher
	readOnly bool
	done     bool

	calendars map[domaincars.CarID]stagedCalendar
	bookings  []*domainbooking.Booking
	records   []appoutbox.EventRecord
}

func (u *Unit) Cars() domaincars.Repository                 { return unitCars{u} }
func (u *Unit) Availability() domainavailability.Repository { return unitCalendars{u} }
func (u *Unit) Bookings() domainbooking.Ledger              { return unitLedger{u} }
func (u *Unit) Outbox() appoutbox.Outbox                    { return unitOutbox{u} }

func (u *Unit) Commit(_ context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly || (len(u.calendars) == 0 && len(u.bookings) == 0 && len(u.records) == 0) {
		return nil
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitHook != nil {
		if err := s.commitHook(); err != nil {
			return err
		}
	}
	for id, staged := range u.calendars {
		if s.calendars[id].version != staged.expected {
			return uow.ErrConcurrentUpdate
		}
	}
	for _, b := range u.bookings {
		if _, exists := s.byID[b.ID]; exists {
			return ErrDuplicateBooking
		}
	}
	for id, staged := range u.calendars {
		s.calendars[id] = calendarRow{days: staged.days, version: staged.expected + 1}
	}
	for _, b := range u.bookings {
		s.bookings = append(s.bookings, b)
		s.byID[b.ID] = b
	}
	now := time.Now().UTC()
	for _, rec := range u.records {
		doc := infraoutbox.NewDocument(rec, now)
		s.outbox = append(s.outbox, &doc)
	}
	return nil
}

func (u *Unit) Rollback(_ context.Context) error {
	u.done = true
	u.calendars = nil
	u.bookings = nil
	u.records = nil
	return nil
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type unitCars struct{ u *Unit }

func (r unitCars) ByID(_ context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	return r.u.store.carByID(id)
}

type unitCalendars struct{ u *Unit }

func (r unitCalendars) Calendar(_ context.Context, id domaincars.CarID) (*domainavailability.Calendar, error) {
	if staged, ok := r.u.calendars[id]; ok {
		return &domainavailability.Calendar{CarID: id, BookedDays: staged.days.Clone(), Version: staged.expected + 1}, nil
	}
	row, err := r.u.store.calendarRow(id)
	if err != nil {
		return nil, err
	}
	return &domainavailability.Calendar{CarID: id, BookedDays: row.days, Version: row.version}, nil
}

func (r unitCalendars) Save(_ context.Context, c *domainavailability.Calendar) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	expected := c.Version
	if staged, ok := r.u.calendars[c.CarID]; ok {
		if c.Version != staged.expected+1 {
			return uow.ErrConcurrentUpdate
		}
		expected = staged.expected
	}
	r.u.calendars[c.CarID] = stagedCalendar{expected: expected, days: c.BookedDays.Clone()}
	c.Version = expected + 1
	return nil
}

type unitLedger struct{ u *Unit }

func (r unitLedger) Append(_ context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.bookings = append(r.u.bookings, copyBooking(b))
	return nil
}

func (r unitLedger) ByID(_ context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	for _, b := range r.u.bookings {
		if b.ID == id {
			return copyBooking(b), nil
		}
	}
	if b, ok := r.u.store.bookingByID(id); ok {
		return b, nil
	}
	return nil, domainbooking.ErrBookingNotFound
}

func (r unitLedger) ListByCar(_ context.Context, id domaincars.CarID) ([]*domainbooking.Booking, error) {
	out := r.u.store.bookingsForCar(id)
	for _, b := range r.u.bookings {
		if b.CarID == id {
			out = append(out, copyBooking(b))
		}
	}
	sortLedger(out)
	return out, nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, rec appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.records = append(o.u.records, rec)
	return nil
}

func (o unitOutbox) Flush(ctx context.Context) error {
	if o.u.signal == nil {
		return nil
	}
	return o.u.signal.Flush(ctx)
}

var (
	_ uow.UoWFactory     = Factory{}
	_ uow.UnitOfWork     = (*Unit)(nil)
	_ appoutbox.Outbox   = unitOutbox{}
	_ domaincars.Catalog = (*Catalog)(nil)
)

// Catalog exposes the Store as the car catalog collaborator.
type Catalog struct {
	Store *Store
}

func (c Catalog) ByID(_ context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	return c.Store.carByID(id)
}

func (c Catalog) Save(ctx context.Context, car *domaincars.Car) error {
	return c.Store.SaveCar(ctx, car)
}
