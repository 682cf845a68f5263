package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// IdempotencyPurger drops replay records older than cutoff. Mongo expires
// them with a TTL index and needs no purger.
type IdempotencyPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

type OutboxMaintainer interface {
	Pending(ctx context.Context) (int64, error)
	Compact(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	IdempotencyTTL  time.Duration
	OutboxRetention time.Duration
	PurgeSchedule   string
	OutboxSchedule  string
	Timeout         time.Duration
}

// Maintenance runs periodic housekeeping for the reservation stores.
type Maintenance struct {
	Idempotency IdempotencyPurger
	Outbox      OutboxMaintainer
	Logger      *slog.Logger
	Config      Config
	Now         func() time.Time
}

// Start schedules the jobs and returns the running scheduler. Stop it on
// shutdown and wait on the returned context.
func (m *Maintenance) Start() (*cron.Cron, error) {
	c := cron.New()
	if m.Idempotency != nil {
		if _, err := c.AddFunc(m.schedule(m.Config.PurgeSchedule, "@every 1h"), m.PurgeIdempotency); err != nil {
			return nil, err
		}
	}
	if m.Outbox != nil {
		if _, err := c.AddFunc(m.schedule(m.Config.OutboxSchedule, "*/5 * * * *"), m.CheckOutbox); err != nil {
			return nil, err
		}
	}
	c.Start()
	m.logger().Info("maintenance jobs scheduled", "entries", len(c.Entries()))
	return c, nil
}

func (m *Maintenance) PurgeIdempotency() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout())
	defer cancel()
	ttl := m.Config.IdempotencyTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	removed, err := m.Idempotency.Purge(ctx, m.now().Add(-ttl))
	if err != nil {
		m.logger().Error("idempotency purge failed", "error", err)
		return
	}
	m.logger().Info("idempotency records purged", "removed", removed)
}

// CheckOutbox compacts delivered records and reports the backlog.
func (m *Maintenance) CheckOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout())
	defer cancel()
	retention := m.Config.OutboxRetention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	removed, err := m.Outbox.Compact(ctx, m.now().Add(-retention))
	if err != nil {
		m.logger().Error("outbox compaction failed", "error", err)
		return
	}
	pending, err := m.Outbox.Pending(ctx)
	if err != nil {
		m.logger().Error("outbox backlog check failed", "error", err)
		return
	}
	level := slog.LevelInfo
	if pending > 100 {
		level = slog.LevelWarn
	}
	m.logger().Log(ctx, level, "outbox status", "pending", pending, "compacted", removed)
}

func (m *Maintenance) schedule(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func (m *Maintenance) timeout() time.Duration {
	if m.Config.Timeout > 0 {
		return m.Config.Timeout
	}
	return 30 * time.Second
}

func (m *Maintenance) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *Maintenance) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
