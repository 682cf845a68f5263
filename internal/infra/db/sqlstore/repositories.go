package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/money"
)

var ErrDuplicateBooking = errors.New("sqlstore: booking id already exists")

// CarRepository is the catalog over the cars table.
type CarRepository struct {
	db *gorm.DB
}

func NewCarRepository(db *gorm.DB) *CarRepository {
	return &CarRepository{db: db}
}

func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	var row carRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domaincars.ErrCarNotFound
		}
		return nil, err
	}
	return &domaincars.Car{
		ID:              domaincars.CarID(row.ID),
		Name:            row.Name,
		Type:            row.Type,
		Location:        row.Location,
		FuelType:        row.FuelType,
		Transmission:    row.Transmission,
		SeatingCapacity: row.SeatingCapacity,
		Mileage:         row.Mileage,
		Rating:          row.Rating,
		Image:           row.Image,
		DailyRate:       money.Money{Amount: row.DailyRate, Currency: row.Currency},
	}, nil
}

// Save upserts catalog columns and leaves version untouched.
func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	row := carRow{
		ID:              string(car.ID),
		Name:            car.Name,
		Type:            car.Type,
		Location:        car.Location,
		FuelType:        car.FuelType,
		Transmission:    car.Transmission,
		SeatingCapacity: car.SeatingCapacity,
		Mileage:         car.Mileage,
		Rating:          car.Rating,
		Image:           car.Image,
		DailyRate:       car.DailyRate.Amount,
		Currency:        car.DailyRate.Currency,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type", "location", "fuel_type", "transmission",
			"seating_capacity", "mileage", "rating", "image", "daily_rate", "currency",
		}),
	}).Create(&row).Error
}

type CalendarRepository struct {
	db *gorm.DB
}

func (r *CalendarRepository) Calendar(ctx context.Context, id domaincars.CarID) (*domainavailability.Calendar, error) {
	db := r.db.WithContext(ctx)
	var car carRow
	if err := db.Select("id", "version").First(&car, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domaincars.ErrCarNotFound
		}
		return nil, err
	}
	var days []string
	if err := db.Model(&bookedDayRow{}).Where("car_id = ?", string(id)).Order("day").Pluck("day", &days).Error; err != nil {
		return nil, err
	}
	cal := domainavailability.NewCalendar(id)
	cal.BookedDays = daterange.FromStrings(days)
	cal.Version = car.Version
	return cal, nil
}

// Save bumps the car version if it still matches and inserts the nights not
// yet stored. Days are never removed.
func (r *CalendarRepository) Save(ctx context.Context, c *domainavailability.Calendar) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&carRow{}).
		Where("id = ? AND version = ?", string(c.CarID), c.Version).
		UpdateColumn("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		if isSerializationFailure(res.Error) {
			return uow.ErrConcurrentUpdate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrConcurrentUpdate
	}

	var stored []string
	if err := db.Model(&bookedDayRow{}).Where("car_id = ?", string(c.CarID)).Pluck("day", &stored).Error; err != nil {
		return err
	}
	existing := daterange.FromStrings(stored)
	var rows []bookedDayRow
	for _, day := range c.BookedDays.Sorted() {
		if !existing.Has(day) {
			rows = append(rows, bookedDayRow{CarID: string(c.CarID), Day: string(day)})
		}
	}
	if len(rows) > 0 {
		if err := db.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) || isSerializationFailure(err) {
				return uow.ErrConcurrentUpdate
			}
			return err
		}
	}
	c.Version++
	return nil
}

type BookingRepository struct {
	db *gorm.DB
}

func (r *BookingRepository) Append(ctx context.Context, b *domainbooking.Booking) error {
	row := bookingRow{
		ID:                 string(b.ID),
		CarID:              string(b.CarID),
		RequesterID:        b.RequesterID,
		StartDate:          string(b.Range.Start),
		EndDate:            string(b.Range.End),
		RenterName:         b.Renter.Name,
		ContactNumber:      b.Renter.ContactNumber,
		Note:               b.Note,
		LicenseReference:   b.LicenseReference,
		CollateralType:     string(b.Collateral.Kind),
		CollateralAmount:   b.Collateral.Amount,
		CollateralGadgets:  b.Collateral.Gadgets,
		CollateralVehicles: b.Collateral.Vehicles,
		TotalAmount:        b.Total.Amount,
		Currency:           b.Total.Currency,
		CreatedAt:          b.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return err
	}
	return nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var row bookingRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toBooking(), nil
}

func (r *BookingRepository) ListByCar(ctx context.Context, carID domaincars.CarID) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := r.db.WithContext(ctx).Where("car_id = ?", string(carID)).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toBooking())
	}
	return out, nil
}

func (row bookingRow) toBooking() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:               domainbooking.BookingID(row.ID),
		CarID:            domaincars.CarID(row.CarID),
		RequesterID:      row.RequesterID,
		Range:            daterange.DateRange{Start: daterange.DayKey(row.StartDate), End: daterange.DayKey(row.EndDate)},
		Renter:           domainbooking.Renter{Name: row.RenterName, ContactNumber: row.ContactNumber},
		Note:             row.Note,
		LicenseReference: row.LicenseReference,
		Collateral: domainbooking.Collateral{
			Kind:     domainbooking.CollateralKind(row.CollateralType),
			Amount:   row.CollateralAmount,
			Gadgets:  row.CollateralGadgets,
			Vehicles: row.CollateralVehicles,
		},
		Total:     money.Money{Amount: row.TotalAmount, Currency: row.Currency},
		CreatedAt: row.CreatedAt.UTC(),
	}
}

var (
	_ domaincars.Catalog            = (*CarRepository)(nil)
	_ domainavailability.Repository = (*CalendarRepository)(nil)
	_ domainbooking.Ledger          = (*BookingRepository)(nil)
)
