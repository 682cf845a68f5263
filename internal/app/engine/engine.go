package engine

import (
	"errors"
	"log/slog"
	"time"

	"rentcar/internal/app/commands"
	availabilityapp "rentcar/internal/app/handlers/availability"
	bookingapp "rentcar/internal/app/handlers/booking"
	"rentcar/internal/app/locks"
	"rentcar/internal/app/middleware"
	"rentcar/internal/app/outbox"
	"rentcar/internal/app/queries"
	"rentcar/internal/app/uow"
	domainbooking "rentcar/internal/domain/booking"
)

var ErrMissingUnitOfWork = errors.New("engine: unit of work factory required")

// Config holds the tunables of the reservation pipeline.
type Config struct {
	Rules       domainbooking.Rules
	Retry       middleware.RetryPolicy
	LockTimeout time.Duration
	Clock       func() time.Time
	IDGenerator func() string
}

// Deps are the ports the engine runs on. Only UoW is required.
type Deps struct {
	UoW         uow.UoWFactory
	Idempotency middleware.IdempotencyStore
	Validator   middleware.Validator
	Flusher     outbox.Flusher
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
}

// Engine exposes the reservation command and availability queries as buses.
type Engine struct {
	Commands commands.Bus
	Queries  queries.Bus
	Locks    *locks.KeyedMutex
}

// New wires the command pipeline outermost first: logging, validation,
// idempotency, outbox flush, retry, per-car lock, transaction.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.UoW == nil {
		return nil, ErrMissingUnitOfWork
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	carLocks := locks.NewKeyedMutex()

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.ReserveCarCommand{}.Key(), &bookingapp.ReserveCarHandler{
		UoWFactory:  deps.UoW,
		Rules:       cfg.Rules,
		Encoder:     deps.Encoder,
		Clock:       cfg.Clock,
		IDGenerator: cfg.IDGenerator,
		Logger:      logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{
		UoWFactory: deps.UoW,
		Rules:      cfg.Rules,
		Clock:      cfg.Clock,
	})
	queries.RegisterHandler(queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, bookingapp.ListBookingsQuery{}.Key(), &bookingapp.ListBookingsHandler{UoWFactory: deps.UoW})
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: deps.UoW})

	var cmdMWs []middleware.CommandMiddleware
	var queryMWs []middleware.QueryMiddleware
	cmdMWs = append(cmdMWs, middleware.Logging(logger))
	queryMWs = append(queryMWs, middleware.QueryLogging(logger))
	if deps.Validator != nil {
		cmdMWs = append(cmdMWs, middleware.Validation(deps.Validator))
		queryMWs = append(queryMWs, middleware.QueryValidation(deps.Validator))
	}
	if deps.Idempotency != nil {
		cmdMWs = append(cmdMWs, middleware.Idempotency(deps.Idempotency, nil, nil))
	}
	if deps.Flusher != nil {
		cmdMWs = append(cmdMWs, middleware.OutboxFlush(deps.Flusher, logger))
	}
	cmdMWs = append(cmdMWs,
		middleware.Retry(cfg.Retry),
		middleware.Lock(carLocks, cfg.LockTimeout),
		middleware.Transaction(deps.UoW, nil),
	)

	logger.Debug("reservation engine wired", "commands", commandBus.Keys(), "queries", queryBus.Keys())

	return &Engine{
		Commands: middleware.ChainCommands(commandBus, cmdMWs...),
		Queries:  middleware.ChainQueries(queryBus, queryMWs...),
		Locks:    carLocks,
	}, nil
}
