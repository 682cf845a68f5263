package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"rentcar/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Flusher hints the relay that new records are ready.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Outbox stores event records in the same transaction as the aggregate change.
type Outbox interface {
	Flusher
	Add(ctx context.Context, record EventRecord) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

type headersKey struct{}

// WithHeader attaches a header that every record written under ctx carries
// to the broker, such as the originating request id.
func WithHeader(ctx context.Context, key, value string) context.Context {
	if key == "" || value == "" {
		return ctx
	}
	merged := map[string]string{key: value}
	for k, v := range HeadersFromContext(ctx) {
		if k != key {
			merged[k] = v
		}
	}
	return context.WithValue(ctx, headersKey{}, merged)
}

func HeadersFromContext(ctx context.Context) map[string]string {
	h, _ := ctx.Value(headersKey{}).(map[string]string)
	return h
}

// RecordDomainEvents encodes evs and adds them to box in order. Context
// headers are copied onto each record unless the encoder already set them.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	ctxHeaders := HeadersFromContext(ctx)
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if len(ctxHeaders) > 0 && rec.Headers == nil {
			rec.Headers = make(map[string]string, len(ctxHeaders))
		}
		for k, v := range ctxHeaders {
			if _, set := rec.Headers[k]; !set {
				rec.Headers[k] = v
			}
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
