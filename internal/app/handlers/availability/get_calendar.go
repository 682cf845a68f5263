package availability

import (
	"context"
	"strings"

	"rentcar/internal/app/dto"
	"rentcar/internal/app/handlers/support"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
	domaincars "rentcar/internal/domain/cars"
)

const getCalendarKey = "availability.calendar"

type GetCalendarQuery struct {
	CarID string `validate:"required"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	unit, ctx, cleanup, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, support.StoreError(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	carID := domaincars.CarID(strings.TrimSpace(q.CarID))
	if _, err := unit.Cars().ByID(ctx, carID); err != nil {
		return dto.Calendar{}, support.LookupError(err, "car", string(carID))
	}
	calendar, err := unit.Availability().Calendar(ctx, carID)
	if err != nil {
		return dto.Calendar{}, support.LookupError(err, "car", string(carID))
	}
	return dto.MapCalendar(calendar), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
