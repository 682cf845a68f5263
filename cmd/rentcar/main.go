package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"rentcar/internal/app/engine"
	"rentcar/internal/app/middleware"
	"rentcar/internal/app/uow"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/infra/broker/kafka"
	"rentcar/internal/infra/config"
	mongostore "rentcar/internal/infra/db/mongo"
	"rentcar/internal/infra/db/sqlstore"
	"rentcar/internal/infra/fixtures"
	ginserver "rentcar/internal/infra/http/gin"
	"rentcar/internal/infra/jobs"
	"rentcar/internal/infra/obs"
	infraoutbox "rentcar/internal/infra/outbox"
	"rentcar/internal/infra/storage/memory"
	"rentcar/internal/infra/storage/s3"
	"rentcar/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	signalCh := infraoutbox.NewSignal()
	store, err := openStorage(ctx, cfg, signalCh, logger)
	if err != nil {
		logger.Error("storage init failed", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer store.close()

	if n, err := fixtures.LoadCarsFile(ctx, store.catalog, cfg.CarsFixtures, cfg.Currency); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("car fixtures file not found, skipping", "path", cfg.CarsFixtures)
		} else {
			logger.Warn("car fixtures load failed", "error", err, "path", cfg.CarsFixtures, "loaded", n)
		}
	} else {
		logger.Info("car fixtures imported", "count", n, "path", cfg.CarsFixtures)
	}

	eng, err := engine.New(engine.Deps{
		UoW:         store.factory,
		Idempotency: store.idempotency,
		Validator:   validation.New(),
		Flusher:     signalCh,
		Logger:      logger,
	}, engine.Config{
		Rules: domainbooking.Rules{
			MinCollateral: cfg.MinCollateral,
			ContactDigits: cfg.ContactDigits,
			MaxNights:     cfg.MaxNights,
		},
		Retry: middleware.RetryPolicy{
			Attempts: cfg.ReserveMaxAttempts,
			Backoff:  cfg.RetryBackoff,
		},
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	producer, closeProducer := newProducer(cfg, logger)
	defer closeProducer()
	worker := &infraoutbox.Worker{
		Store:       store.outbox,
		Producer:    producer,
		Signal:      signalCh,
		Logger:      logger.With("component", "outbox"),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute},
	}
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	maintenance := &jobs.Maintenance{
		Idempotency: store.purger,
		Outbox:      store.outbox,
		Logger:      logger.With("component", "jobs"),
		Config:      jobs.Config{IdempotencyTTL: cfg.IdempotencyTTL},
	}
	scheduler, err := maintenance.Start()
	if err != nil {
		logger.Error("job scheduler init failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready:   store.ping,
		Timeout: 2 * time.Second,
	}, ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: eng.Commands, Queries: eng.Queries},
		Availability: ginserver.AvailabilityHandler{Queries: eng.Queries},
		License:      ginserver.LicenseHandler{Store: newLicenseStore(cfg, logger)},
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		<-scheduler.Stop().Done()
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

// storage bundles the adapters of the selected backend.
type storage struct {
	factory     uow.UoWFactory
	catalog     domaincars.Catalog
	idempotency middleware.IdempotencyStore
	purger      jobs.IdempotencyPurger
	outbox      outboxSource
	ping        func(ctx context.Context) error
	close       func()
}

type outboxSource interface {
	infraoutbox.Source
	jobs.OutboxMaintainer
}

func openStorage(ctx context.Context, cfg config.Config, signalCh *infraoutbox.Signal, log *slog.Logger) (storage, error) {
	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, err
		}
		factory := mongostore.NewFactory(client.DB, signalCh)
		return storage{
			factory:     factory,
			catalog:     mongostore.NewCarRepository(client.DB),
			idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
			outbox:      factory.Outbox,
			ping:        client.Ping,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Close(closeCtx); err != nil {
					log.Warn("mongo disconnect failed", "error", err)
				}
			},
		}, nil
	case config.StorageSQL:
		db, err := sqlstore.Open(cfg.SQLDSN, gormlogger.Default.LogMode(gormlogger.Warn))
		if err != nil {
			return storage{}, err
		}
		idem := sqlstore.IdempotencyStore{DB: db}
		return storage{
			factory:     sqlstore.Factory{DB: db, Signal: signalCh},
			catalog:     sqlstore.NewCarRepository(db),
			idempotency: idem,
			purger:      idem,
			outbox:      sqlstore.OutboxSource{DB: db},
			ping: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil
	default:
		mem := memory.NewStore()
		idem := memory.NewIdempotencyStore()
		return storage{
			factory:     memory.Factory{Store: mem, Signal: signalCh},
			catalog:     memory.Catalog{Store: mem},
			idempotency: idem,
			purger:      idem,
			outbox:      memory.OutboxSource{Store: mem},
			ping:        func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}
}

func newProducer(cfg config.Config, log *slog.Logger) (infraoutbox.Producer, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, events are logged only")
		return kafka.LogProducer{Logger: log.With("component", "events")}, func() {}
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		log.Warn("kafka producer unavailable, events are logged only", "error", err)
		return kafka.LogProducer{Logger: log.With("component", "events")}, func() {}
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}
}

func newLicenseStore(cfg config.Config, log *slog.Logger) s3.LicenseStore {
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		log.Info("license storage disabled, S3 credentials not set")
		return s3.NoopStore{}
	}
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, log.With("component", "s3"))
	if err != nil {
		log.Warn("license storage unavailable", "error", err)
		return s3.NoopStore{}
	}
	return client
}
