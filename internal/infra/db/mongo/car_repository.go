package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/money"
)

const carsCollection = "cars"

// carDocument keeps the catalog fields and the calendar on one document so a
// reservation's check and write hit a single record.
type carDocument struct {
	ID              string   `bson:"_id"`
	Name            string   `bson:"name"`
	Type            string   `bson:"type,omitempty"`
	Location        string   `bson:"location,omitempty"`
	FuelType        string   `bson:"fuel_type,omitempty"`
	Transmission    string   `bson:"transmission,omitempty"`
	SeatingCapacity int      `bson:"seating_capacity,omitempty"`
	Mileage         float64  `bson:"mileage,omitempty"`
	Rating          float64  `bson:"rating,omitempty"`
	Image           string   `bson:"image,omitempty"`
	DailyRate       int64    `bson:"daily_rate"`
	Currency        string   `bson:"currency"`
	BookedDays      []string `bson:"booked_days"`
	Version         int64    `bson:"version"`
}

func (d carDocument) toCar() *domaincars.Car {
	return &domaincars.Car{
		ID:              domaincars.CarID(d.ID),
		Name:            d.Name,
		Type:            d.Type,
		Location:        d.Location,
		FuelType:        d.FuelType,
		Transmission:    d.Transmission,
		SeatingCapacity: d.SeatingCapacity,
		Mileage:         d.Mileage,
		Rating:          d.Rating,
		Image:           d.Image,
		DailyRate:       money.Money{Amount: d.DailyRate, Currency: d.Currency},
	}
}

type CarRepository struct {
	col *mongo.Collection
}

func NewCarRepository(db *mongo.Database) *CarRepository {
	return &CarRepository{col: db.Collection(carsCollection)}
}

func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	var doc carDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincars.ErrCarNotFound
		}
		return nil, err
	}
	return doc.toCar(), nil
}

// Save upserts catalog fields. Booked days and version are only initialised
// on insert, so reloading fixtures never clears a calendar.
func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	set := bson.M{
		"name":             car.Name,
		"type":             car.Type,
		"location":         car.Location,
		"fuel_type":        car.FuelType,
		"transmission":     car.Transmission,
		"seating_capacity": car.SeatingCapacity,
		"mileage":          car.Mileage,
		"rating":           car.Rating,
		"image":            car.Image,
		"daily_rate":       car.DailyRate.Amount,
		"currency":         car.DailyRate.Currency,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"booked_days": bson.A{}, "version": int64(0)},
	}
	_, err := r.col.UpdateByID(ctx, string(car.ID), update, options.Update().SetUpsert(true))
	return err
}

type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection(carsCollection)}
}

func (r *CalendarRepository) Calendar(ctx context.Context, id domaincars.CarID) (*domainavailability.Calendar, error) {
	var doc struct {
		BookedDays []string `bson:"booked_days"`
		Version    int64    `bson:"version"`
	}
	opts := options.FindOne().SetProjection(bson.M{"booked_days": 1, "version": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincars.ErrCarNotFound
		}
		return nil, err
	}
	cal := domainavailability.NewCalendar(id)
	cal.BookedDays = daterange.FromStrings(doc.BookedDays)
	cal.Version = doc.Version
	return cal, nil
}

// Save replaces the booked days only if the stored version still matches.
func (r *CalendarRepository) Save(ctx context.Context, c *domainavailability.Calendar) error {
	filter := bson.M{"_id": string(c.CarID), "version": c.Version}
	update := bson.M{
		"$set": bson.M{"booked_days": c.BookedDays.Strings()},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		if isWriteConflict(err) {
			return uow.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return uow.ErrConcurrentUpdate
	}
	c.Version++
	return nil
}

var (
	_ domaincars.Catalog            = (*CarRepository)(nil)
	_ domainavailability.Repository = (*CalendarRepository)(nil)
)
