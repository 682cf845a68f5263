package dto

import (
	"time"

	domainbooking "rentcar/internal/domain/booking"
	"rentcar/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CollateralDTO struct {
	Type     string `json:"type"`
	Amount   int64  `json:"amount,omitempty"`
	Gadgets  string `json:"gadgets,omitempty"`
	Vehicles string `json:"vehicles,omitempty"`
}

type Booking struct {
	ID               string        `json:"id"`
	CarID            string        `json:"car_id"`
	RequesterID      string        `json:"requester_id,omitempty"`
	StartDate        string        `json:"start_date"`
	EndDate          string        `json:"end_date"`
	Nights           int           `json:"nights"`
	RenterName       string        `json:"renter_name"`
	ContactNumber    string        `json:"contact_number"`
	Note             string        `json:"note,omitempty"`
	LicenseReference string        `json:"license_reference,omitempty"`
	Collateral       CollateralDTO `json:"collateral"`
	Total            MoneyDTO      `json:"total"`
	CreatedAt        time.Time     `json:"created_at"`
}

type BookingCollection struct {
	CarID string    `json:"car_id"`
	Items []Booking `json:"items"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:               string(b.ID),
		CarID:            string(b.CarID),
		RequesterID:      b.RequesterID,
		StartDate:        string(b.Range.Start),
		EndDate:          string(b.Range.End),
		Nights:           b.Nights(),
		RenterName:       b.Renter.Name,
		ContactNumber:    b.Renter.ContactNumber,
		Note:             b.Note,
		LicenseReference: b.LicenseReference,
		Collateral: CollateralDTO{
			Type:     string(b.Collateral.Kind),
			Amount:   b.Collateral.Amount,
			Gadgets:  b.Collateral.Gadgets,
			Vehicles: b.Collateral.Vehicles,
		},
		Total:     MapMoney(b.Total),
		CreatedAt: b.CreatedAt,
	}
}

func MapBookings(carID string, items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{CarID: carID, Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
