package memory

import (
	"context"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Enqueue(ctx context.Context, tx repository.Tx, e *model.OutboxEvent) (bool, error) {
	defer r.s.lock(tx)()
	for _, cur := range r.s.outbox {
		if cur.OrderID == e.OrderID && cur.Kind == e.Kind {
			return false, nil
		}
	}
	cp := *e
	r.s.outbox = append(r.s.outbox, &cp)
	return true, nil
}

func (r *OutboxRepo) ClaimBatch(ctx context.Context, tx repository.Tx, limit, maxAttempts int) ([]*model.OutboxEvent, error) {
	defer r.s.lock(tx)()
	var out []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if len(out) >= limit {
			break
		}
		if e.ProcessedAt == nil && e.Attempts < maxAttempts {
			cp := *e
			cp.DeliveredTo = append([]string(nil), e.DeliveredTo...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id, sink string) error {
	defer r.s.lock(tx)()
	for _, e := range r.s.outbox {
		if e.ID == id {
			if !e.DeliveredBy(sink) {
				e.DeliveredTo = append(e.DeliveredTo, sink)
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string) error {
	defer r.s.lock(tx)()
	for _, e := range r.s.outbox {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string) error {
	defer r.s.lock(tx)()
	for _, e := range r.s.outbox {
		if e.ID == id {
			e.Attempts++
			e.LastError = &reason
			return nil
		}
	}
	return domain.ErrNotFound
}

// Events returns a copy of every event, for tests and dev inspection.
func (r *OutboxRepo) Events() []model.OutboxEvent {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(r.s.outbox))
	for _, e := range r.s.outbox {
		out = append(out, *e)
	}
	return out
}
