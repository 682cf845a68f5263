package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/events"
)

var (
	ErrOverlappingRange = errors.New("availability: range overlaps booked days")
	ErrNoNights         = errors.New("availability: range consumes no nights")
)

// ConflictError lists the already-booked days a candidate range would consume.
type ConflictError struct {
	CarID cars.CarID
	Days  []daterange.DayKey
}

func (e *ConflictError) Error() string {
	days := make([]string, len(e.Days))
	for i, d := range e.Days {
		days[i] = string(d)
	}
	return fmt.Sprintf("availability: car %s already booked on %s", e.CarID, strings.Join(days, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrOverlappingRange
}

// Calendar is the per-car set of booked days. Version increments on every
// successful save and guards concurrent writers.
type Calendar struct {
	CarID      cars.CarID
	BookedDays daterange.DaySet
	Version    int64
	events.EventRecorder
}

type Repository interface {
	Calendar(ctx context.Context, id cars.CarID) (*Calendar, error)
	// Save persists BookedDays only if the stored version still equals
	// c.Version, then advances c.Version.
	Save(ctx context.Context, c *Calendar) error
}

func NewCalendar(id cars.CarID) *Calendar {
	return &Calendar{CarID: id, BookedDays: daterange.NewDaySet()}
}

// Overlaps stops at the first consumed night already present in booked.
func Overlaps(candidate daterange.DateRange, booked daterange.DaySet) bool {
	for _, d := range candidate.Nights() {
		if booked.Has(d) {
			return true
		}
	}
	return false
}

// Conflicts returns every consumed night of candidate that is already booked,
// in chronological order.
func Conflicts(candidate daterange.DateRange, booked daterange.DaySet) []daterange.DayKey {
	var out []daterange.DayKey
	for _, d := range candidate.Nights() {
		if booked.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (c *Calendar) CanReserve(r daterange.DateRange) bool {
	return !Overlaps(r, c.BookedDays)
}

// Reserve adds the consumed nights of r to the calendar or returns a
// *ConflictError without touching it.
func (c *Calendar) Reserve(r daterange.DateRange, bookingID string, now time.Time) error {
	nights := r.Nights()
	if len(nights) == 0 {
		return ErrNoNights
	}
	if conflicts := Conflicts(r, c.BookedDays); len(conflicts) > 0 {
		return &ConflictError{CarID: c.CarID, Days: conflicts}
	}
	if c.BookedDays == nil {
		c.BookedDays = daterange.NewDaySet()
	}
	c.BookedDays.Add(nights...)
	c.Record(CalendarBlockedEvent(c.CarID, r, bookingID, now))
	return nil
}

// NextFreeDay returns the first day on or after from that is not booked.
func (c *Calendar) NextFreeDay(from daterange.DayKey) daterange.DayKey {
	day := from
	for c.BookedDays.Has(day) {
		day = day.AddDays(1)
	}
	return day
}

func (c *Calendar) Sorted() []daterange.DayKey {
	return c.BookedDays.Sorted()
}

// Clone copies the calendar without pending events.
func (c *Calendar) Clone() *Calendar {
	return &Calendar{CarID: c.CarID, BookedDays: c.BookedDays.Clone(), Version: c.Version}
}
