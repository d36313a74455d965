package memory

import (
	"context"
	"sort"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.PaymentRecordRepository = (*PaymentRecordRepo)(nil)

type PaymentRecordRepo struct{ s *Store }

func (r *PaymentRecordRepo) Append(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) (bool, error) {
	defer r.s.lock(tx)()
	if _, ok := r.s.records[rec.OrderID]; ok {
		return false, nil
	}
	cp := *rec
	r.s.records[rec.OrderID] = &cp
	return true, nil
}

func (r *PaymentRecordRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	defer r.s.lock(tx)()
	rec, ok := r.s.records[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *PaymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	defer r.s.lock(tx)()
	var out []*model.PaymentRecord
	for _, rec := range r.s.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (r *PaymentRecordRepo) SumSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	defer r.s.lock(tx)()
	var sum int64
	for _, rec := range r.s.records {
		if !rec.CompletedAt.Before(since) {
			sum += rec.Amount
		}
	}
	return sum, nil
}

// Count is a test helper.
func (r *PaymentRecordRepo) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.records)
}
