package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcar/internal/domain/shared/events"
)

type stubEvent struct{ car string }

func (e stubEvent) EventName() string     { return "calendar.blocked" }
func (e stubEvent) AggregateID() string   { return e.car }
func (e stubEvent) OccurredAt() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) }

type memBox struct{ records []EventRecord }

func (b *memBox) Add(_ context.Context, rec EventRecord) error {
	b.records = append(b.records, rec)
	return nil
}

func (b *memBox) Flush(context.Context) error { return nil }

func TestRecordDomainEventsCopiesContextHeaders(t *testing.T) {
	ctx := WithHeader(context.Background(), "x-request-id", "req-1")
	ctx = WithHeader(ctx, "x-requester-id", "user-7")
	box := &memBox{}

	ids := []string{"e-1", "e-2"}
	enc := JSONEventEncoder{IDGenerator: func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}}
	require.NoError(t, RecordDomainEvents(ctx, box, enc, nil))
	assert.Empty(t, box.records)

	require.NoError(t, RecordDomainEvents(ctx, box, enc, []events.DomainEvent{stubEvent{car: "car-1"}, stubEvent{car: "car-2"}}))
	require.Len(t, box.records, 2)
	assert.Equal(t, "e-1", box.records[0].ID)
	assert.Equal(t, "car-2", box.records[1].Aggregate)
	assert.Equal(t, "calendar.blocked", box.records[0].Name)
	assert.Equal(t, map[string]string{"x-request-id": "req-1", "x-requester-id": "user-7"}, box.records[0].Headers)
	assert.JSONEq(t, `{}`, string(box.records[0].Payload))
}

func TestWithHeaderIgnoresEmptyValues(t *testing.T) {
	ctx := WithHeader(context.Background(), "x-request-id", "")
	assert.Nil(t, HeadersFromContext(ctx))

	ctx = WithHeader(ctx, "a", "1")
	ctx = WithHeader(ctx, "a", "2")
	assert.Equal(t, map[string]string{"a": "2"}, HeadersFromContext(ctx))
}
