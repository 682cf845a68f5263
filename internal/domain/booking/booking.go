package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/events"
	"rentcar/internal/domain/shared/money"
)

var (
	ErrBookingNotFound = errors.New("booking: not found")
	ErrInvalidID       = errors.New("booking: id required")
)

type BookingID string

// Booking is an accepted reservation. It is created once by the
// reservation transaction and never modified afterwards.
type Booking struct {
	ID               BookingID
	CarID            cars.CarID
	RequesterID      string
	Range            daterange.DateRange
	Renter           Renter
	Note             string
	LicenseReference string
	Collateral       Collateral
	Total            money.Money
	CreatedAt        time.Time
	events.EventRecorder
}

// Ledger is the append-only booking history.
type Ledger interface {
	Append(ctx context.Context, b *Booking) error
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// ListByCar returns bookings ordered by CreatedAt ascending; ties keep
	// insertion order.
	ListByCar(ctx context.Context, carID cars.CarID) ([]*Booking, error)
}

type CreateParams struct {
	ID               BookingID
	Car              *cars.Car
	RequesterID      string
	Range            daterange.DateRange
	Renter           Renter
	Note             string
	LicenseReference string
	Collateral       Collateral
	CreatedAt        time.Time
}

// NewBooking assumes the range and renter data already passed Rules; it
// prices the stay and records BookingPlaced.
func NewBooking(p CreateParams) (*Booking, error) {
	if p.ID == "" {
		return nil, ErrInvalidID
	}
	if p.Car == nil {
		return nil, cars.ErrCarNotFound
	}
	nights := p.Range.NightCount()
	if nights <= 0 {
		return nil, ErrZeroNights
	}
	b := &Booking{
		ID:               p.ID,
		CarID:            p.Car.ID,
		RequesterID:      p.RequesterID,
		Range:            p.Range,
		Renter:           p.Renter.Normalized(),
		Note:             strings.TrimSpace(p.Note),
		LicenseReference: strings.TrimSpace(p.LicenseReference),
		Collateral:       p.Collateral.Normalized(),
		Total:            p.Car.DailyRate.Multiply(int64(nights)),
		CreatedAt:        p.CreatedAt.UTC(),
	}
	b.Record(BookingPlaced{
		BookingID:     string(b.ID),
		CarID:         string(b.CarID),
		RequesterID:   b.RequesterID,
		Range:         b.Range,
		RenterName:    b.Renter.Name,
		ContactNumber: b.Renter.ContactNumber,
		Total:         b.Total,
		At:            b.CreatedAt,
	})
	return b, nil
}

func (b *Booking) Nights() int {
	return b.Range.NightCount()
}
