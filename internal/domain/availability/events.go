package availability

import (
	"time"

	"rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
)

type CalendarBlocked struct {
	CarID     string              `json:"car_id"`
	BookingID string              `json:"booking_id"`
	Range     daterange.DateRange `json:"range"`
	Nights    []daterange.DayKey  `json:"nights"`
	At        time.Time           `json:"at"`
}

func (e CalendarBlocked) EventName() string     { return "calendar.blocked" }
func (e CalendarBlocked) AggregateID() string   { return e.CarID }
func (e CalendarBlocked) OccurredAt() time.Time { return e.At }

func CalendarBlockedEvent(id cars.CarID, r daterange.DateRange, bookingID string, at time.Time) CalendarBlocked {
	return CalendarBlocked{CarID: string(id), BookingID: bookingID, Range: r, Nights: r.Nights(), At: at.UTC()}
}
