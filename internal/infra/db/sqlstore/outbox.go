package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "rentcar/internal/app/outbox"
	infraoutbox "rentcar/internal/infra/outbox"
)

func newOutboxRow(rec appoutbox.EventRecord) (outboxRow, error) {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return outboxRow{}, err
	}
	now := time.Now().UTC()
	doc := infraoutbox.NewDocument(rec, now)
	return outboxRow{
		ID:          doc.ID,
		Name:        doc.Name,
		Payload:     doc.Payload,
		OccurredAt:  doc.OccurredAt.UTC(),
		Aggregate:   doc.Aggregate,
		Headers:     string(headers),
		State:       doc.State,
		NextAttempt: doc.NextAttempt,
		CreatedAt:   now,
	}, nil
}

func (row outboxRow) toDocument() *infraoutbox.EventDocument {
	headers := map[string]string{}
	_ = json.Unmarshal([]byte(row.Headers), &headers)
	return &infraoutbox.EventDocument{
		ID:          row.ID,
		Name:        row.Name,
		Payload:     row.Payload,
		OccurredAt:  row.OccurredAt,
		Aggregate:   row.Aggregate,
		Headers:     headers,
		State:       row.State,
		Attempts:    row.Attempts,
		NextAttempt: row.NextAttempt,
		ClaimedBy:   row.ClaimedBy,
		ClaimedAt:   row.ClaimedAt,
		SentAt:      row.SentAt,
		LastError:   row.LastError,
	}
}

// OutboxSource feeds the relay worker from the outbox_events table.
type OutboxSource struct {
	DB *gorm.DB
}

func (s OutboxSource) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	var claimed *infraoutbox.EventDocument
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		q := tx.Where("(state IN ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at <= ?)",
			[]string{infraoutbox.StateNew, infraoutbox.StateFailed}, now,
			infraoutbox.StateClaimed, now.Add(-infraoutbox.ClaimTimeout)).
			Order("next_attempt_at")
		if isPostgres(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var row outboxRow
		if err := q.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		row.State = infraoutbox.StateClaimed
		row.ClaimedBy = workerID
		row.ClaimedAt = now
		if err := tx.Model(&outboxRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"state":      row.State,
			"claimed_by": row.ClaimedBy,
			"claimed_at": row.ClaimedAt,
		}).Error; err != nil {
			return err
		}
		claimed = row.toDocument()
		return nil
	})
	return claimed, err
}

func (s OutboxSource) MarkSent(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   infraoutbox.StateSent,
		"sent_at": time.Now().UTC(),
	}).Error
}

func (s OutboxSource) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.DB.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           infraoutbox.StateFailed,
		"next_attempt_at": next.UTC(),
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
}

func (s OutboxSource) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&outboxRow{}).Where("state <> ?", infraoutbox.StateSent).Count(&n).Error
	return n, err
}

// Compact deletes delivered rows older than cutoff.
func (s OutboxSource) Compact(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("state = ? AND sent_at < ?", infraoutbox.StateSent, cutoff).Delete(&outboxRow{})
	return res.RowsAffected, res.Error
}

var _ infraoutbox.Source = OutboxSource{}
