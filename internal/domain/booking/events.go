package booking

import (
	"time"

	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/money"
)

type BookingPlaced struct {
	BookingID     string              `json:"booking_id"`
	CarID         string              `json:"car_id"`
	RequesterID   string              `json:"requester_id,omitempty"`
	Range         daterange.DateRange `json:"range"`
	RenterName    string              `json:"renter_name"`
	ContactNumber string              `json:"contact_number"`
	Total         money.Money         `json:"total"`
	At            time.Time           `json:"at"`
}

func (e BookingPlaced) EventName() string     { return "booking.placed" }
func (e BookingPlaced) AggregateID() string   { return e.CarID }
func (e BookingPlaced) OccurredAt() time.Time { return e.At }
