package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (f *fakePurger) Purge(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return 3, f.err
}

type fakeOutbox struct {
	cutoff  time.Time
	pending int64
	calls   int
}

func (f *fakeOutbox) Pending(context.Context) (int64, error) {
	f.calls++
	return f.pending, nil
}

func (f *fakeOutbox) Compact(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

var fixedNow = time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

func TestPurgeIdempotencyUsesTTL(t *testing.T) {
	p := &fakePurger{}
	m := &Maintenance{Idempotency: p, Config: Config{IdempotencyTTL: 48 * time.Hour}, Now: func() time.Time { return fixedNow }}

	m.PurgeIdempotency()
	assert.Equal(t, fixedNow.Add(-48*time.Hour), p.cutoff)

	p.err = errors.New("db down")
	assert.NotPanics(t, m.PurgeIdempotency)
}

func TestCheckOutboxCompactsWithRetention(t *testing.T) {
	o := &fakeOutbox{pending: 150}
	m := &Maintenance{Outbox: o, Now: func() time.Time { return fixedNow }}

	m.CheckOutbox()
	assert.Equal(t, fixedNow.Add(-24*time.Hour), o.cutoff)
	assert.Equal(t, 1, o.calls)
}

func TestStartSchedulesConfiguredJobs(t *testing.T) {
	m := &Maintenance{Idempotency: &fakePurger{}, Outbox: &fakeOutbox{}}
	c, err := m.Start()
	require.NoError(t, err)
	defer c.Stop()
	assert.Len(t, c.Entries(), 2)

	only := &Maintenance{Outbox: &fakeOutbox{}}
	c2, err := only.Start()
	require.NoError(t, err)
	defer c2.Stop()
	assert.Len(t, c2.Entries(), 1)
}

func TestStartRejectsBadSpec(t *testing.T) {
	m := &Maintenance{Outbox: &fakeOutbox{}, Config: Config{OutboxSchedule: "not a schedule"}}
	_, err := m.Start()
	assert.Error(t, err)
}
