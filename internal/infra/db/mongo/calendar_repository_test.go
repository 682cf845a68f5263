package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"rentcar/internal/app/uow"
	domainavailability "rentcar/internal/domain/availability"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
)

func TestCalendarRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save advances version when the stored version matches", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		cal := domainavailability.NewCalendar("car-1")
		cal.Version = 3
		cal.BookedDays.Add("2025-07-20")

		require.NoError(mt, repo.Save(context.Background(), cal))
		assert.Equal(mt, int64(4), cal.Version)
	})

	mt.Run("save with a stale version reports a concurrent update", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		cal := domainavailability.NewCalendar("car-1")
		cal.Version = 3

		err := repo.Save(context.Background(), cal)
		assert.ErrorIs(mt, err, uow.ErrConcurrentUpdate)
		assert.Equal(mt, int64(3), cal.Version)
	})

	mt.Run("save maps write conflicts to a concurrent update", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    112,
			Message: "WriteConflict",
		}))

		cal := domainavailability.NewCalendar("car-1")
		err := repo.Save(context.Background(), cal)
		assert.ErrorIs(mt, err, uow.ErrConcurrentUpdate)
		assert.Equal(mt, int64(0), cal.Version)
	})

	mt.Run("save passes other server errors through", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		err := repo.Save(context.Background(), domainavailability.NewCalendar("car-1"))
		require.Error(mt, err)
		assert.False(mt, errors.Is(err, uow.ErrConcurrentUpdate))
	})

	mt.Run("calendar loads booked days and version", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "rentcar.cars", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "car-1"},
			{Key: "booked_days", Value: bson.A{"2025-07-20", "2025-07-21"}},
			{Key: "version", Value: int64(7)},
		}))

		cal, err := repo.Calendar(context.Background(), "car-1")
		require.NoError(mt, err)
		assert.Equal(mt, domaincars.CarID("car-1"), cal.CarID)
		assert.Equal(mt, int64(7), cal.Version)
		assert.Equal(mt, []daterange.DayKey{"2025-07-20", "2025-07-21"}, cal.Sorted())
	})

	mt.Run("calendar of an unknown car", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "rentcar.cars", mtest.FirstBatch))

		_, err := repo.Calendar(context.Background(), "ghost")
		assert.ErrorIs(mt, err, domaincars.ErrCarNotFound)
	})
}

// scriptedSession replays commit results in order. Methods other than
// CommitTransaction are never called by commitTransaction.
type scriptedSession struct {
	mongo.Session
	results []error
	commits int
}

func (s *scriptedSession) CommitTransaction(context.Context) error {
	err := s.results[s.commits]
	s.commits++
	return err
}

func TestCommitTransactionRetriesUnknownResultOnce(t *testing.T) {
	unknown := mongo.CommandError{Code: 50, Name: "MaxTimeMSExpired", Labels: []string{unknownCommitResultLabel}}

	s := &scriptedSession{results: []error{unknown, nil}}
	require.NoError(t, commitTransaction(context.Background(), s))
	assert.Equal(t, 2, s.commits)

	s = &scriptedSession{results: []error{unknown, unknown}}
	err := commitTransaction(context.Background(), s)
	assert.ErrorAs(t, err, &mongo.CommandError{})
	assert.Equal(t, 2, s.commits)

	plain := errors.New("network closed")
	s = &scriptedSession{results: []error{plain}}
	assert.ErrorIs(t, commitTransaction(context.Background(), s), plain)
	assert.Equal(t, 1, s.commits)
}

func TestCommitTransactionMapsTransientFailures(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	s := &scriptedSession{results: []error{transient}}

	assert.ErrorIs(t, commitTransaction(context.Background(), s), uow.ErrConcurrentUpdate)
	assert.Equal(t, 1, s.commits)
}
