package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	"rentcar/internal/app/notifications"
)

type EnvelopeHandler interface {
	Handle(ctx context.Context, env notifications.Envelope) error
}

// CloudEventHandler decodes structured-mode CloudEvents and passes them on.
// Undecodable messages are logged and acknowledged so they do not block the
// partition.
type CloudEventHandler struct {
	Next   EnvelopeHandler
	Logger *slog.Logger
}

func (h CloudEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env notifications.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.logger().Warn("dropping undecodable event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if env.ID == "" {
		env.ID = header(msg, "ce-id")
	}
	if env.Type == "" {
		env.Type = header(msg, "ce-type")
	}
	err := h.Next.Handle(ctx, env)
	if errors.Is(err, notifications.ErrMalformedEvent) {
		h.logger().Warn("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	return err
}

func (h CloudEventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
