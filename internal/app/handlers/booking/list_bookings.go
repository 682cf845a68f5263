package booking

import (
	"context"
	"strings"

	"rentcar/internal/app/dto"
	"rentcar/internal/app/handlers/support"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
)

const (
	listBookingsKey = "booking.list_for_car"
	getBookingKey   = "booking.get"
)

type ListBookingsQuery struct {
	CarID string `validate:"required"`
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	unit, ctx, cleanup, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, support.StoreError(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	carID := domaincars.CarID(strings.TrimSpace(q.CarID))
	if _, err := unit.Cars().ByID(ctx, carID); err != nil {
		return dto.BookingCollection{}, support.LookupError(err, "car", string(carID))
	}
	items, err := unit.Bookings().ListByCar(ctx, carID)
	if err != nil {
		return dto.BookingCollection{}, support.StoreError(err)
	}
	return dto.MapBookings(string(carID), items), nil
}

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, ctx, cleanup, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, support.StoreError(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	id := domainbooking.BookingID(strings.TrimSpace(q.BookingID))
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return dto.Booking{}, support.LookupError(err, "booking", string(id))
	}
	return dto.MapBooking(b), nil
}

var (
	_ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
	_ queries.Handler[GetBookingQuery, dto.Booking]             = (*GetBookingHandler)(nil)
)
