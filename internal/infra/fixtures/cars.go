package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/money"
)

type carFixture struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Image           string  `json:"image"`
	FuelType        string  `json:"fuelType"`
	Transmission    string  `json:"transmission"`
	SeatingCapacity int     `json:"seatingCapacity"`
	Mileage         float64 `json:"mileage"`
	Rating          float64 `json:"rating"`
	PricePerDay     int64   `json:"pricePerDay"`
	Location        string  `json:"location"`
}

// LoadCarsFile seeds catalog from a JSON array of cars. Existing cars keep
// their calendars; only catalog fields are overwritten.
func LoadCarsFile(ctx context.Context, catalog domaincars.Catalog, path, currency string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return LoadCars(ctx, catalog, f, currency)
}

func LoadCars(ctx context.Context, catalog domaincars.Catalog, r io.Reader, currency string) (int, error) {
	var items []carFixture
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("fixtures: decode cars: %w", err)
	}
	for i, item := range items {
		rate, err := money.New(item.PricePerDay, currency)
		if err != nil {
			return i, fmt.Errorf("fixtures: car %q: %w", item.ID, err)
		}
		car, err := domaincars.NewCar(domaincars.CreateParams{
			ID:              domaincars.CarID(item.ID),
			Name:            item.Name,
			Type:            item.Type,
			Location:        item.Location,
			FuelType:        item.FuelType,
			Transmission:    item.Transmission,
			SeatingCapacity: item.SeatingCapacity,
			Mileage:         item.Mileage,
			Rating:          item.Rating,
			Image:           item.Image,
			DailyRate:       rate,
		})
		if err != nil {
			return i, fmt.Errorf("fixtures: car %q: %w", item.ID, err)
		}
		if err := catalog.Save(ctx, car); err != nil {
			return i, err
		}
	}
	return len(items), nil
}
