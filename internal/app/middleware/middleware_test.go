package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/commands"
	"rentcar/internal/app/locks"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
)

type testCommand struct {
	key     string
	lockKey string
}

func (c testCommand) Key() string            { return "test.command" }
func (c testCommand) IdempotencyKey() string { return c.key }
func (c testCommand) ResultPrototype() any   { return &testResult{} }
func (c testCommand) LockKey() string        { return c.lockKey }

type testResult struct {
	Value int `json:"value"`
}

type mapStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func newMapStore() *mapStore { return &mapStore{items: map[string]IdempotencyRecord{}} }

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryRecoversFromConcurrentUpdate(t *testing.T) {
	var calls int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, uow.ErrConcurrentUpdate
		}
		return &testResult{Value: 7}, nil
	})
	bus := ChainCommands(base, Retry(RetryPolicy{Attempts: 3, Sleep: noSleep}))

	res, err := commands.Dispatch[testCommand, *testResult](context.Background(), bus, testCommand{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Value)
	assert.Equal(t, int32(3), calls)
}

func TestRetryExhaustion(t *testing.T) {
	var calls int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, uow.ErrConcurrentUpdate
	})
	bus := ChainCommands(base, Retry(RetryPolicy{Attempts: 2, Backoff: []time.Duration{time.Millisecond}, Sleep: noSleep}))

	_, err := bus.Dispatch(context.Background(), testCommand{})
	assert.Equal(t, apperrors.KindConcurrencyExhausted, apperrors.KindOf(err))
	assert.ErrorIs(t, err, uow.ErrConcurrentUpdate)
	assert.Equal(t, int32(2), calls)
}

func TestRetryPassesThroughOtherErrors(t *testing.T) {
	var calls int32
	conflict := apperrors.Conflict("taken", []string{"2025-07-22"}, nil)
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, conflict
	})
	bus := ChainCommands(base, Retry(RetryPolicy{Sleep: noSleep}))

	_, err := bus.Dispatch(context.Background(), testCommand{})
	assert.Same(t, conflict, err)
	assert.Equal(t, int32(1), calls)
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	var calls int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		return &testResult{Value: int(atomic.AddInt32(&calls, 1))}, nil
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil, nil))

	first, err := commands.Dispatch[testCommand, *testResult](context.Background(), bus, testCommand{key: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[testCommand, *testResult](context.Background(), bus, testCommand{key: "k1"})
	require.NoError(t, err)

	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, int32(1), calls)
}

func TestIdempotencyReplaysConflictKind(t *testing.T) {
	var calls int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, apperrors.Conflict("taken", []string{"2025-07-22"}, nil)
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil, nil))

	_, err := bus.Dispatch(context.Background(), testCommand{key: "k2"})
	require.Error(t, err)
	_, err = bus.Dispatch(context.Background(), testCommand{key: "k2"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, "taken", appErr.Message)
	assert.Equal(t, []any{"2025-07-22"}, appErr.Details["conflicts"])
	assert.Equal(t, int32(1), calls)
}

func TestIdempotencyDoesNotCacheTransientFailures(t *testing.T) {
	var calls int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, apperrors.Persistence(errors.New("disk full"))
		}
		return &testResult{Value: 1}, nil
	})
	bus := ChainCommands(base, Idempotency(newMapStore(), nil, nil))

	_, err := bus.Dispatch(context.Background(), testCommand{key: "k3"})
	require.Error(t, err)
	res, err := commands.Dispatch[testCommand, *testResult](context.Background(), bus, testCommand{key: "k3"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Value)
	assert.Equal(t, int32(2), calls)
}

func TestLockSerialisesSameKey(t *testing.T) {
	var inside, overlap int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		if atomic.AddInt32(&inside, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inside, -1)
		return nil, nil
	})
	bus := ChainCommands(base, Lock(locks.NewKeyedMutex(), time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = bus.Dispatch(context.Background(), testCommand{lockKey: "car-1"})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(0), overlap)
}

func TestLockTimeoutIsConcurrencyExhausted(t *testing.T) {
	m := locks.NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "car-1")
	require.NoError(t, err)
	defer unlock()

	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) { return nil, nil })
	bus := ChainCommands(base, Lock(m, 10*time.Millisecond))
	_, err = bus.Dispatch(context.Background(), testCommand{lockKey: "car-1"})
	assert.Equal(t, apperrors.KindConcurrencyExhausted, apperrors.KindOf(err))
}

type validatorFunc func(ctx context.Context, message any) error

func (f validatorFunc) Validate(ctx context.Context, message any) error { return f(ctx, message) }

func TestValidationClassifiesPlainErrors(t *testing.T) {
	var reached int32
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		atomic.AddInt32(&reached, 1)
		return &testResult{Value: 1}, nil
	})
	plain := errors.New("car id required")
	bus := ChainCommands(base, Validation(validatorFunc(func(context.Context, any) error { return plain })))

	_, err := bus.Dispatch(context.Background(), testCommand{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, int32(0), reached)
}

func TestValidationKeepsClassifiedAndContextErrors(t *testing.T) {
	notFound := apperrors.NotFound("car", "car-9")
	bus := ChainCommands(commandFunc(func(context.Context, commands.Command) (any, error) { return nil, nil }),
		Validation(validatorFunc(func(context.Context, any) error { return notFound })))
	_, err := bus.Dispatch(context.Background(), testCommand{})
	assert.Same(t, notFound, err)

	canceled := ChainCommands(commandFunc(func(context.Context, commands.Command) (any, error) { return nil, nil }),
		Validation(validatorFunc(func(ctx context.Context, _ any) error { return ctx.Err() })))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = canceled.Dispatch(ctx, testCommand{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	ok := ChainQueries(queryFunc(func(context.Context, queries.Query) (any, error) { return "fine", nil }),
		QueryValidation(validatorFunc(func(context.Context, any) error { return nil })))
	res, err := ok.Ask(context.Background(), testQuery{})
	require.NoError(t, err)
	assert.Equal(t, "fine", res)

	bad := ChainQueries(queryFunc(func(context.Context, queries.Query) (any, error) { return nil, nil }),
		QueryValidation(validatorFunc(func(context.Context, any) error { return errors.New("bad from") })))
	_, err = bad.Ask(context.Background(), testQuery{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

type testQuery struct{}

func (testQuery) Key() string { return "test.query" }
