package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/dto"
	"rentcar/internal/app/handlers/support"
	"rentcar/internal/app/middleware"
	"rentcar/internal/app/outbox"
	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
)

const reserveCarKey = "booking.reserve"

// ConflictMessage is shown to renters when the dates are taken.
const ConflictMessage = "This car is already booked for the selected dates"

type ReserveCarCommand struct {
	CarID            string `validate:"required"`
	StartDate        string `validate:"required,datetime=2006-01-02"`
	EndDate          string `validate:"required,datetime=2006-01-02"`
	RequesterID      string
	RenterName       string `validate:"required"`
	ContactNumber    string `validate:"required,numeric"`
	Note             string `validate:"max=1000"`
	LicenseReference string `validate:"max=512"`
	CollateralType   string `validate:"required,oneof=amount gadgets vehicles"`
	CollateralAmount int64
	Gadgets          string
	Vehicles         string
	IdempotencyKeyV  string
}

func (c ReserveCarCommand) Key() string { return reserveCarKey }

func (c ReserveCarCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ReserveCarCommand) ResultPrototype() any { return &ReserveCarResult{} }

func (c ReserveCarCommand) LockKey() string {
	if strings.TrimSpace(c.CarID) == "" {
		return ""
	}
	return "car:" + strings.TrimSpace(c.CarID)
}

type ReserveCarResult struct {
	Booking    dto.Booking `json:"booking"`
	BookedDays []string    `json:"booked_days"`
}

type ReserveCarHandler struct {
	UoWFactory  uow.UoWFactory
	Rules       domainbooking.Rules
	Encoder     outbox.EventEncoder
	Clock       func() time.Time
	IDGenerator func() string
	Logger      *slog.Logger
}

func (h *ReserveCarHandler) Handle(ctx context.Context, cmd ReserveCarCommand) (*ReserveCarResult, error) {
	now := h.now()
	dr, err := daterange.Parse(strings.TrimSpace(cmd.StartDate), strings.TrimSpace(cmd.EndDate))
	if err != nil {
		return nil, apperrors.Validation(err)
	}
	renter := domainbooking.Renter{Name: cmd.RenterName, ContactNumber: cmd.ContactNumber}
	collateral := domainbooking.Collateral{
		Kind:     domainbooking.CollateralKind(strings.ToLower(strings.TrimSpace(cmd.CollateralType))),
		Amount:   cmd.CollateralAmount,
		Gadgets:  cmd.Gadgets,
		Vehicles: cmd.Vehicles,
	}
	if err := h.validate(dr, renter, collateral, now); err != nil {
		return nil, apperrors.Validation(err)
	}

	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		unit, ctx, err = uow.Begin(ctx, h.UoWFactory, uow.TxOptions{})
		if err != nil {
			return nil, support.StoreError(err)
		}
		managed = true
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	carID := domaincars.CarID(strings.TrimSpace(cmd.CarID))
	car, err := unit.Cars().ByID(ctx, carID)
	if err != nil {
		return nil, support.LookupError(err, "car", string(carID))
	}
	calendar, err := unit.Availability().Calendar(ctx, carID)
	if err != nil {
		return nil, support.LookupError(err, "car", string(carID))
	}

	bookingID := h.newID()
	if err := calendar.Reserve(dr, bookingID, now); err != nil {
		var conflict *domainavailability.ConflictError
		if errors.As(err, &conflict) {
			h.logger().InfoContext(ctx, "overbooking prevented", "car_id", carID, "range", dr.String(), "conflicts", dto.DayStrings(conflict.Days))
			return nil, apperrors.Conflict(ConflictMessage, dto.DayStrings(conflict.Days), err)
		}
		return nil, apperrors.Validation(err)
	}

	record, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:               domainbooking.BookingID(bookingID),
		Car:              car,
		RequesterID:      strings.TrimSpace(cmd.RequesterID),
		Range:            dr,
		Renter:           renter,
		Note:             cmd.Note,
		LicenseReference: cmd.LicenseReference,
		Collateral:       collateral,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, apperrors.Validation(err)
	}

	if err := unit.Availability().Save(ctx, calendar); err != nil {
		return nil, support.StoreError(err)
	}
	if err := unit.Bookings().Append(ctx, record); err != nil {
		return nil, support.StoreError(err)
	}
	pending := append(record.DrainEvents(), calendar.DrainEvents()...)
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.encoder(), pending); err != nil {
		return nil, support.StoreError(err)
	}

	if managed {
		committed = true
		if err := unit.Commit(ctx); err != nil {
			return nil, support.StoreError(err)
		}
	}

	h.logger().InfoContext(ctx, "car reserved", "car_id", carID, "booking_id", bookingID, "range", dr.String(), "nights", record.Nights())
	return &ReserveCarResult{
		Booking:    dto.MapBooking(record),
		BookedDays: calendar.BookedDays.Strings(),
	}, nil
}

func (h *ReserveCarHandler) validate(dr daterange.DateRange, renter domainbooking.Renter, collateral domainbooking.Collateral, now time.Time) error {
	if err := h.Rules.ValidateRange(dr, daterange.DayOf(now)); err != nil {
		return err
	}
	if err := h.Rules.ValidateRenter(renter); err != nil {
		return err
	}
	return h.Rules.ValidateCollateral(collateral)
}

func (h *ReserveCarHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

// newID prefers time-ordered v7 ids so ledger ties sort by insertion.
func (h *ReserveCarHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (h *ReserveCarHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ReserveCarHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var (
	_ commands.Handler[ReserveCarCommand, *ReserveCarResult] = (*ReserveCarHandler)(nil)
	_ middleware.IdempotentCommand                           = ReserveCarCommand{}
	_ middleware.LockedCommand                               = ReserveCarCommand{}
)
