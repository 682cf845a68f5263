package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rentcar/internal/app/policies"
	domainbooking "rentcar/internal/domain/booking"
)

const BookingConfirmationTemplate = "booking_confirmation"

var bookingPlacedType = (domainbooking.BookingPlaced{}).EventName() + ".v1"

var ErrMalformedEvent = errors.New("notifications: malformed event")

// Envelope is the CloudEvents JSON envelope written by the outbox relay.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Source  string          `json:"source"`
	Subject string          `json:"subject"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// Inbox remembers which event ids were handled. Forget undoes Seen when
// handling fails so the redelivered event is not dropped.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// BookingPlacedHandler sends the renter a confirmation once per placed
// booking. Other event types are ignored.
type BookingPlacedHandler struct {
	Inbox    Inbox
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (h BookingPlacedHandler) Handle(ctx context.Context, env Envelope) error {
	if env.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	if env.Type != bookingPlacedType {
		return nil
	}
	var ev domainbooking.BookingPlaced
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			h.logger().DebugContext(ctx, "duplicate event skipped", "event_id", env.ID)
			return nil
		}
	}
	err := h.Notifier.Send(ctx, ev.ContactNumber, BookingConfirmationTemplate, map[string]any{
		"booking_id":  ev.BookingID,
		"car_id":      ev.CarID,
		"renter_name": ev.RenterName,
		"start_date":  string(ev.Range.Start),
		"end_date":    string(ev.Range.End),
		"total":       ev.Total.String(),
	})
	if err != nil && h.Inbox != nil {
		if ferr := h.Inbox.Forget(ctx, env.ID); ferr != nil {
			h.logger().WarnContext(ctx, "inbox rollback failed", "event_id", env.ID, "error", ferr)
		}
	}
	return err
}

func (h BookingPlacedHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
