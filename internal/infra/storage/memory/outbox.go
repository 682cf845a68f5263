package memory

import (
	"context"
	"time"

	infraoutbox "rentcar/internal/infra/outbox"
)

// OutboxSource lets the relay drain records committed to the Store.
type OutboxSource struct {
	Store *Store
}

func (o OutboxSource) Claim(_ context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	s := o.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, doc := range s.outbox {
		ready := (doc.State == infraoutbox.StateNew || doc.State == infraoutbox.StateFailed) && !doc.NextAttempt.After(now)
		stale := doc.State == infraoutbox.StateClaimed && doc.ClaimedAt.Before(now.Add(-infraoutbox.ClaimTimeout))
		if !ready && !stale {
			continue
		}
		doc.State = infraoutbox.StateClaimed
		doc.ClaimedBy = workerID
		doc.ClaimedAt = now
		cp := *doc
		return &cp, nil
	}
	return nil, nil
}

func (o OutboxSource) MarkSent(_ context.Context, id string) error {
	o.update(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateSent
		doc.SentAt = time.Now().UTC()
	})
	return nil
}

func (o OutboxSource) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.update(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateFailed
		doc.NextAttempt = next
		doc.LastError = errMsg
		doc.Attempts++
	})
	return nil
}

// Pending counts records not yet delivered.
func (o OutboxSource) Pending(context.Context) (int64, error) {
	s := o.Store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, doc := range s.outbox {
		if doc.State != infraoutbox.StateSent {
			n++
		}
	}
	return n, nil
}

// Compact drops records delivered before cutoff.
func (o OutboxSource) Compact(_ context.Context, cutoff time.Time) (int64, error) {
	s := o.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.outbox[:0]
	var removed int64
	for _, doc := range s.outbox {
		if doc.State == infraoutbox.StateSent && doc.SentAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	s.outbox = kept
	return removed, nil
}

func (o OutboxSource) update(id string, fn func(doc *infraoutbox.EventDocument)) {
	s := o.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.outbox {
		if doc.ID == id {
			fn(doc)
			return
		}
	}
}

var _ infraoutbox.Source = OutboxSource{}
