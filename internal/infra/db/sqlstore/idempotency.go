package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentcar/internal/app/middleware"
)

type IdempotencyStore struct {
	DB *gorm.DB
}

func (s IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var row idempotencyRow
	if err := s.DB.WithContext(ctx).First(&row, "idem_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{
		Key:        row.Key,
		Payload:    row.Payload,
		ErrorKind:  row.ErrorKind,
		Error:      row.Error,
		Details:    row.Details,
		OccurredAt: row.OccurredAt,
	}, true, nil
}

func (s IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	row := idempotencyRow{
		Key:        rec.Key,
		Payload:    rec.Payload,
		ErrorKind:  rec.ErrorKind,
		Error:      rec.Error,
		Details:    rec.Details,
		OccurredAt: rec.OccurredAt.UTC(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Purge deletes records older than cutoff.
func (s IdempotencyStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.DB.WithContext(ctx).Where("occurred_at < ?", cutoff.UTC()).Delete(&idempotencyRow{})
	return int(res.RowsAffected), res.Error
}

var _ middleware.IdempotencyStore = IdempotencyStore{}
