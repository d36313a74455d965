package memory

import (
	"context"
	"sort"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

type OrderRepo struct{ s *Store }

func (r *OrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	defer r.s.lock(tx)()
	if _, ok := r.s.orders[o.ID]; ok {
		return domain.ErrDuplicateOrder
	}
	cp := *o
	r.s.orders[o.ID] = &cp
	return nil
}

func (r *OrderRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Order, error) {
	defer r.s.lock(tx)()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *OrderRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewayTxnID string) (*model.Order, error) {
	defer r.s.lock(tx)()
	for _, o := range r.s.orders {
		if o.GatewayTransactionID != nil && *o.GatewayTransactionID == gatewayTxnID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *OrderRepo) Transition(ctx context.Context, tx repository.Tx, orderID string, next model.OrderStatus, f model.OrderFields) (*model.Order, error) {
	defer r.s.lock(tx)()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, domain.ErrInvalidTransition
	}
	o.Status = next
	if f.GatewayTransactionID != nil {
		id := *f.GatewayTransactionID
		o.GatewayTransactionID = &id
	}
	if now := time.Now(); now.After(o.UpdatedAt) {
		o.UpdatedAt = now
	}
	cp := *o
	return &cp, nil
}

func (r *OrderRepo) ListStaleNonTerminal(ctx context.Context, tx repository.Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Order, error) {
	defer r.s.lock(tx)()
	if limit <= 0 {
		limit = 100
	}
	var out []*model.Order
	for _, o := range r.s.orders {
		if !o.Status.IsTerminal() && !o.CreatedAt.Before(createdAfter) && o.CreatedAt.Before(createdBefore) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
