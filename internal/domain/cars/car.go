package cars

import (
	"context"
	"errors"
	"strings"

	"rentcar/internal/domain/shared/money"
)

var (
	ErrCarNotFound      = errors.New("cars: car not found")
	ErrInvalidCarID     = errors.New("cars: id required")
	ErrInvalidDailyRate = errors.New("cars: daily rate must be positive")
)

type CarID string

// Car is the catalog entry the engine reads. Booked days live on the
// availability calendar keyed by the same id.
type Car struct {
	ID              CarID
	Name            string
	Type            string
	Location        string
	FuelType        string
	Transmission    string
	SeatingCapacity int
	Mileage         float64
	Rating          float64
	Image           string
	DailyRate       money.Money
}

type Repository interface {
	ByID(ctx context.Context, id CarID) (*Car, error)
}

// Catalog is the write side used by the fixtures loader.
type Catalog interface {
	Repository
	Save(ctx context.Context, car *Car) error
}

type CreateParams struct {
	ID              CarID
	Name            string
	Type            string
	Location        string
	FuelType        string
	Transmission    string
	SeatingCapacity int
	Mileage         float64
	Rating          float64
	Image           string
	DailyRate       money.Money
}

func NewCar(p CreateParams) (*Car, error) {
	id := CarID(strings.TrimSpace(string(p.ID)))
	if id == "" {
		return nil, ErrInvalidCarID
	}
	if p.DailyRate.Amount <= 0 {
		return nil, ErrInvalidDailyRate
	}
	return &Car{
		ID:              id,
		Name:            strings.TrimSpace(p.Name),
		Type:            p.Type,
		Location:        p.Location,
		FuelType:        p.FuelType,
		Transmission:    p.Transmission,
		SeatingCapacity: p.SeatingCapacity,
		Mileage:         p.Mileage,
		Rating:          p.Rating,
		Image:           p.Image,
		DailyRate:       p.DailyRate,
	}, nil
}
