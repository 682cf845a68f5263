package memory

import (
	"context"
	"sort"
	"sync"

	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	infraoutbox "rentcar/internal/infra/outbox"
)

type calendarRow struct {
	days    daterange.DaySet
	version int64
}

// Store is the process-local backing state shared by every unit of work.
// Units stage their writes and apply them under mu on commit.
type Store struct {
	mu        sync.RWMutex
	cars      map[domaincars.CarID]*domaincars.Car
	calendars map[domaincars.CarID]calendarRow
	bookings  []*domainbooking.Booking
	byID      map[domainbooking.BookingID]*domainbooking.Booking
	outbox    []*infraoutbox.EventDocument

	// commitHook runs before staged writes are applied; a non-nil error
	// aborts the commit. Used to inject storage failures.
	commitHook func() error
}

func NewStore() *Store {
	return &Store{
		cars:      make(map[domaincars.CarID]*domaincars.Car),
		calendars: make(map[domaincars.CarID]calendarRow),
		byID:      make(map[domainbooking.BookingID]*domainbooking.Booking),
	}
}

// SaveCar registers or replaces a catalog entry. An existing calendar is kept.
func (s *Store) SaveCar(_ context.Context, car *domaincars.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *car
	s.cars[car.ID] = &cp
	if _, ok := s.calendars[car.ID]; !ok {
		s.calendars[car.ID] = calendarRow{days: daterange.NewDaySet()}
	}
	return nil
}

// SetCommitHook installs fn to run at the start of every commit.
func (s *Store) SetCommitHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

func (s *Store) carByID(id domaincars.CarID) (*domaincars.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	car, ok := s.cars[id]
	if !ok {
		return nil, domaincars.ErrCarNotFound
	}
	cp := *car
	return &cp, nil
}

func (s *Store) calendarRow(id domaincars.CarID) (calendarRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.cars[id]; !ok {
		return calendarRow{}, domaincars.ErrCarNotFound
	}
	row := s.calendars[id]
	return calendarRow{days: row.days.Clone(), version: row.version}, nil
}

func (s *Store) bookingByID(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return copyBooking(b), true
}

func (s *Store) bookingsForCar(id domaincars.CarID) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.CarID == id {
			out = append(out, copyBooking(b))
		}
	}
	return out
}

// sortLedger orders by CreatedAt keeping insertion order for ties.
func sortLedger(items []*domainbooking.Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func copyBooking(b *domainbooking.Booking) *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:               b.ID,
		CarID:            b.CarID,
		RequesterID:      b.RequesterID,
		Range:            b.Range,
		Renter:           b.Renter,
		Note:             b.Note,
		LicenseReference: b.LicenseReference,
		Collateral:       b.Collateral,
		Total:            b.Total,
		CreatedAt:        b.CreatedAt,
	}
}
