package availability

import (
	"context"
	"strings"
	"time"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/dto"
	"rentcar/internal/app/handlers/support"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

// CheckAvailabilityQuery asks whether a range is free. Start and End are
// optional; without them only the next free day is computed. From is the
// day the renter is looking from and defaults to today.
type CheckAvailabilityQuery struct {
	CarID     string `validate:"required"`
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
	From      string `validate:"omitempty,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

// CheckAvailabilityHandler is advisory: a positive answer does not reserve
// anything and may be stale by the time a reservation is attempted.
type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Rules      domainbooking.Rules
	Clock      func() time.Time
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	from := daterange.DayOf(h.now())
	if raw := strings.TrimSpace(q.From); raw != "" {
		day, err := daterange.ParseDay(raw)
		if err != nil {
			return dto.Availability{}, apperrors.Validation(err)
		}
		from = day
	}
	var candidate *daterange.DateRange
	if strings.TrimSpace(q.StartDate) != "" || strings.TrimSpace(q.EndDate) != "" {
		dr, err := daterange.Parse(strings.TrimSpace(q.StartDate), strings.TrimSpace(q.EndDate))
		if err != nil {
			return dto.Availability{}, apperrors.Validation(err)
		}
		if err := h.Rules.ValidateSpan(dr); err != nil {
			return dto.Availability{}, apperrors.Validation(err)
		}
		candidate = &dr
	}

	unit, ctx, cleanup, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, support.StoreError(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	carID := domaincars.CarID(strings.TrimSpace(q.CarID))
	if _, err := unit.Cars().ByID(ctx, carID); err != nil {
		return dto.Availability{}, support.LookupError(err, "car", string(carID))
	}
	calendar, err := unit.Availability().Calendar(ctx, carID)
	if err != nil {
		return dto.Availability{}, support.LookupError(err, "car", string(carID))
	}

	out := dto.Availability{
		CarID:            string(carID),
		Available:        true,
		Conflicts:        []string{},
		NextAvailableDay: string(calendar.NextFreeDay(from)),
	}
	if candidate != nil {
		conflicts := domainavailability.Conflicts(*candidate, calendar.BookedDays)
		out.StartDate = string(candidate.Start)
		out.EndDate = string(candidate.End)
		out.Available = len(conflicts) == 0
		out.Conflicts = dto.DayStrings(conflicts)
	}
	return out, nil
}

func (h *CheckAvailabilityHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
