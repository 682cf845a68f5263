package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentcar/internal/app/notifications"
	"rentcar/internal/infra/broker/kafka"
	"rentcar/internal/infra/config"
	mongostore "rentcar/internal/infra/db/mongo"
	"rentcar/internal/infra/inbox"
	"rentcar/internal/infra/notify"
	"rentcar/internal/infra/obs"
	infraoutbox "rentcar/internal/infra/outbox"
	"rentcar/internal/infra/storage/memory"
)

const inboxRetention = 30 * 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env).With("component", "notifier")
	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	var seen notifications.Inbox = memory.NewInbox()
	if cfg.Storage == config.StorageMongo {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		}()
		seen = inbox.NewStore(client.DB, cfg.KafkaGroupID, inboxRetention)
	} else {
		logger.Warn("inbox kept in memory, duplicates are only detected until restart")
	}

	handler := kafka.CloudEventHandler{
		Next: notifications.BookingPlacedHandler{
			Inbox:    seen,
			Notifier: notify.LogNotifier{Logger: logger},
			Logger:   logger,
		},
		Logger: logger,
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, handler, logger)
	if err != nil {
		logger.Error("kafka consumer init failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	topic := infraoutbox.TopicFor(cfg.KafkaTopicPrefix, "booking")
	logger.Info("notifier consuming", "topic", topic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}
