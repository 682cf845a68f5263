package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/dto"
	availabilityapp "rentcar/internal/app/handlers/availability"
	bookingapp "rentcar/internal/app/handlers/booking"
	"rentcar/internal/app/middleware"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/money"
	"rentcar/internal/infra/storage/memory"
	"rentcar/internal/infra/validation"
)

var today = time.Date(2025, 7, 1, 8, 30, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	store  *memory.Store
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SaveCar(context.Background(), &domaincars.Car{
		ID:        "car-1",
		Name:      "Swift Dzire",
		DailyRate: money.Must(2500, "INR"),
	}))
	require.NoError(t, store.SaveCar(context.Background(), &domaincars.Car{
		ID:        "car-2",
		Name:      "Innova",
		DailyRate: money.Must(4000, "INR"),
	}))
	eng, err := New(Deps{
		UoW:         memory.Factory{Store: store},
		Idempotency: memory.NewIdempotencyStore(),
		Validator:   validation.New(),
	}, Config{
		Rules: domainbooking.DefaultRules(),
		Retry: middleware.RetryPolicy{Attempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }},
		Clock: func() time.Time { return today },
	})
	require.NoError(t, err)
	return harness{engine: eng, store: store}
}

func reserveCmd(carID, start, end string) bookingapp.ReserveCarCommand {
	return bookingapp.ReserveCarCommand{
		CarID:            carID,
		StartDate:        start,
		EndDate:          end,
		RequesterID:      "user-1",
		RenterName:       "Asha Rao",
		ContactNumber:    "9876543210",
		CollateralType:   "amount",
		CollateralAmount: 5000,
	}
}

func (h harness) reserve(cmd bookingapp.ReserveCarCommand) (*bookingapp.ReserveCarResult, error) {
	return commands.Dispatch[bookingapp.ReserveCarCommand, *bookingapp.ReserveCarResult](context.Background(), h.engine.Commands, cmd)
}

func (h harness) calendar(t *testing.T, carID string) []string {
	t.Helper()
	cal, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](context.Background(), h.engine.Queries, availabilityapp.GetCalendarQuery{CarID: carID})
	require.NoError(t, err)
	return cal.BookedDays
}

func (h harness) ledger(t *testing.T, carID string) []dto.Booking {
	t.Helper()
	res, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](context.Background(), h.engine.Queries, bookingapp.ListBookingsQuery{CarID: carID})
	require.NoError(t, err)
	return res.Items
}

func TestReservationScenarioR1(t *testing.T) {
	h := newHarness(t)
	_, err := h.reserve(reserveCmd("car-1", "2025-07-20", "2025-07-23"))
	require.NoError(t, err)
	require.Equal(t, []string{"2025-07-20", "2025-07-21", "2025-07-22"}, h.calendar(t, "car-1"))

	_, err = h.reserve(reserveCmd("car-1", "2025-07-22", "2025-07-24"))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, bookingapp.ConflictMessage, appErr.Message)
	assert.Equal(t, []string{"2025-07-22"}, appErr.Details["conflicts"])
	assert.Equal(t, []string{"2025-07-20", "2025-07-21", "2025-07-22"}, h.calendar(t, "car-1"))

	res, err := h.reserve(reserveCmd("car-1", "2025-07-23", "2025-07-25"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-20", "2025-07-21", "2025-07-22", "2025-07-23", "2025-07-24"}, res.BookedDays)
	assert.Equal(t, 2, res.Booking.Nights)
	assert.Equal(t, dto.MoneyDTO{Amount: 5000, Currency: "INR"}, res.Booking.Total)
	assert.Len(t, h.ledger(t, "car-1"), 2)
}

func TestCheckoutDayIsFreeForNextRenter(t *testing.T) {
	h := newHarness(t)
	_, err := h.reserve(reserveCmd("car-1", "2025-07-10", "2025-07-12"))
	require.NoError(t, err)
	_, err = h.reserve(reserveCmd("car-1", "2025-07-12", "2025-07-13"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-10", "2025-07-11", "2025-07-12"}, h.calendar(t, "car-1"))
}

func TestValidationBoundaries(t *testing.T) {
	h := newHarness(t)

	zero := reserveCmd("car-1", "2025-07-10", "2025-07-10")
	_, err := h.reserve(zero)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.ErrorIs(t, err, domainbooking.ErrZeroNights)

	low := reserveCmd("car-1", "2025-07-10", "2025-07-12")
	low.CollateralAmount = 999
	_, err = h.reserve(low)
	assert.ErrorIs(t, err, domainbooking.ErrCollateralBelowMinimum)

	short := reserveCmd("car-1", "2025-07-10", "2025-07-12")
	short.ContactNumber = "98765"
	_, err = h.reserve(short)
	assert.ErrorIs(t, err, domainbooking.ErrInvalidContact)

	past := reserveCmd("car-1", "2025-06-28", "2025-07-02")
	_, err = h.reserve(past)
	assert.ErrorIs(t, err, domainbooking.ErrStartInPast)

	noGadgets := reserveCmd("car-1", "2025-07-10", "2025-07-12")
	noGadgets.CollateralType = "gadgets"
	_, err = h.reserve(noGadgets)
	assert.ErrorIs(t, err, domainbooking.ErrCollateralDetailRequired)

	malformed := reserveCmd("car-1", "2025-7-10", "2025-07-12")
	_, err = h.reserve(malformed)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Empty(t, h.calendar(t, "car-1"))
	assert.Empty(t, h.ledger(t, "car-1"))
}

func TestOverlongStayIsRejectedBeforeTouchingCalendar(t *testing.T) {
	h := newHarness(t)

	_, err := h.reserve(reserveCmd("car-1", "2025-07-02", "9999-12-31"))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.ErrorIs(t, err, domainbooking.ErrTooManyNights)

	_, err = queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](context.Background(), h.engine.Queries,
		availabilityapp.CheckAvailabilityQuery{CarID: "car-1", StartDate: "2025-07-02", EndDate: "2026-07-03"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	res, err := h.reserve(reserveCmd("car-1", "2025-07-02", "2026-07-02"))
	require.NoError(t, err)
	assert.Len(t, res.BookedDays, 365)
	assert.Equal(t, int64(365*2500), res.Booking.Total.Amount)
}

func TestUnknownCarIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.reserve(reserveCmd("car-404", "2025-07-10", "2025-07-12"))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](context.Background(), h.engine.Queries,
		availabilityapp.CheckAvailabilityQuery{CarID: "car-404"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestConcurrentOverlappingRequestsExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			cmd := reserveCmd("car-1", "2025-07-20", "2025-07-23")
			if i%2 == 1 {
				cmd = reserveCmd("car-1", "2025-07-21", "2025-07-24")
			}
			_, err := h.reserve(cmd)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.KindOf(err) == apperrors.KindConflict:
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, h.ledger(t, "car-1"), 1)
	assert.Len(t, h.calendar(t, "car-1"), 3)
}

func TestDisjointRangesAndCarsDoNotInterfere(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		for _, car := range []string{"car-1", "car-2"} {
			wg.Add(1)
			go func(car string, i int) {
				defer wg.Done()
				start := fmt.Sprintf("2025-08-%02d", 1+2*i)
				end := fmt.Sprintf("2025-08-%02d", 3+2*i)
				_, err := h.reserve(reserveCmd(car, start, end))
				errs <- err
			}(car, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, h.calendar(t, "car-1"), 20)
	assert.Len(t, h.calendar(t, "car-2"), 20)
}

func TestIdempotentRetryReturnsSameBooking(t *testing.T) {
	h := newHarness(t)
	cmd := reserveCmd("car-1", "2025-07-10", "2025-07-12")
	cmd.IdempotencyKeyV = "req-123"

	first, err := h.reserve(cmd)
	require.NoError(t, err)
	second, err := h.reserve(cmd)
	require.NoError(t, err)

	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Len(t, h.ledger(t, "car-1"), 1)
}

func TestFailedCommitLeavesNoMutation(t *testing.T) {
	h := newHarness(t)
	h.store.SetCommitHook(func() error { return errors.New("write timeout") })

	_, err := h.reserve(reserveCmd("car-1", "2025-07-10", "2025-07-12"))
	assert.Equal(t, apperrors.KindPersistence, apperrors.KindOf(err))

	h.store.SetCommitHook(nil)
	assert.Empty(t, h.calendar(t, "car-1"))
	assert.Empty(t, h.ledger(t, "car-1"))
	pending, err := memory.OutboxSource{Store: h.store}.Pending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestLostVersionRaceIsRetriedThenExhausted(t *testing.T) {
	h := newHarness(t)
	calls := 0
	h.store.SetCommitHook(func() error {
		calls++
		return uow.ErrConcurrentUpdate
	})

	_, err := h.reserve(reserveCmd("car-1", "2025-07-10", "2025-07-12"))
	assert.Equal(t, apperrors.KindConcurrencyExhausted, apperrors.KindOf(err))
	assert.Equal(t, 3, calls)

	h.store.SetCommitHook(nil)
	assert.Empty(t, h.calendar(t, "car-1"))
}

func TestSuccessfulReservationWritesOutbox(t *testing.T) {
	h := newHarness(t)
	_, err := h.reserve(reserveCmd("car-1", "2025-07-10", "2025-07-12"))
	require.NoError(t, err)

	src := memory.OutboxSource{Store: h.store}
	names := map[string]bool{}
	for {
		doc, err := src.Claim(context.Background(), "test")
		require.NoError(t, err)
		if doc == nil {
			break
		}
		names[doc.Name] = true
		assert.Equal(t, "car-1", doc.Aggregate)
		require.NoError(t, src.MarkSent(context.Background(), doc.ID))
	}
	assert.Equal(t, map[string]bool{"booking.placed": true, "calendar.blocked": true}, names)
}

func TestAvailabilityQueryIsAdvisoryAndRepeatable(t *testing.T) {
	h := newHarness(t)
	_, err := h.reserve(reserveCmd("car-1", "2025-07-01", "2025-07-04"))
	require.NoError(t, err)

	q := availabilityapp.CheckAvailabilityQuery{CarID: "car-1", StartDate: "2025-07-03", EndDate: "2025-07-06"}
	first, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](context.Background(), h.engine.Queries, q)
	require.NoError(t, err)
	second, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](context.Background(), h.engine.Queries, q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, first.Available)
	assert.Equal(t, []string{"2025-07-03"}, first.Conflicts)
	assert.Equal(t, "2025-07-04", first.NextAvailableDay)

	free, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](context.Background(), h.engine.Queries,
		availabilityapp.CheckAvailabilityQuery{CarID: "car-1", StartDate: "2025-07-04", EndDate: "2025-07-06", From: "2025-07-10"})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)
	assert.Equal(t, "2025-07-10", free.NextAvailableDay)
}

func TestLedgerOrderAndLookup(t *testing.T) {
	h := newHarness(t)
	ids := make([]string, 0, 3)
	for _, r := range [][2]string{{"2025-07-10", "2025-07-12"}, {"2025-07-05", "2025-07-06"}, {"2025-07-20", "2025-07-21"}} {
		res, err := h.reserve(reserveCmd("car-1", r[0], r[1]))
		require.NoError(t, err)
		ids = append(ids, res.Booking.ID)
	}

	items := h.ledger(t, "car-1")
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, ids[i], item.ID)
	}

	got, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.engine.Queries, bookingapp.GetBookingQuery{BookingID: ids[1]})
	require.NoError(t, err)
	assert.Equal(t, "2025-07-05", got.StartDate)

	_, err = queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.engine.Queries, bookingapp.GetBookingQuery{BookingID: "missing"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
