package memory

import (
	"context"
	"sort"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*EntitlementRepo)(nil)

type EntitlementRepo struct{ s *Store }

func (r *EntitlementRepo) Grant(ctx context.Context, tx repository.Tx, userID, toolID, orderID string, validity time.Duration, now time.Time) (*model.Entitlement, bool, error) {
	defer r.s.lock(tx)()
	k := entKey(userID, toolID)
	if cur, ok := r.s.entitlements[k]; ok && cur.IsCurrentGrantFrom(orderID, now) {
		cp := *cur
		return &cp, false, nil
	}
	e, err := model.NewEntitlement(userID, toolID, orderID, now, validity)
	if err != nil {
		return nil, false, err
	}
	r.s.entitlements[k] = e
	cp := *e
	return &cp, true, nil
}

func (r *EntitlementRepo) Find(ctx context.Context, tx repository.Tx, userID, toolID string) (*model.Entitlement, error) {
	defer r.s.lock(tx)()
	e, ok := r.s.entitlements[entKey(userID, toolID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *EntitlementRepo) FindBySourceOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Entitlement, error) {
	defer r.s.lock(tx)()
	for _, e := range r.s.entitlements {
		if e.SourceOrderID == orderID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *EntitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Entitlement, error) {
	defer r.s.lock(tx)()
	var out []*model.Entitlement
	for _, e := range r.s.entitlements {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out, nil
}

func (r *EntitlementRepo) Revoke(ctx context.Context, tx repository.Tx, userID, toolID string) error {
	defer r.s.lock(tx)()
	e, ok := r.s.entitlements[entKey(userID, toolID)]
	if !ok {
		return domain.ErrNotFound
	}
	e.Active = false
	e.UpdatedAt = time.Now()
	return nil
}

func (r *EntitlementRepo) ImportLegacy(ctx context.Context, tx repository.Tx, g model.LegacyGrant) (bool, error) {
	defer r.s.lock(tx)()
	k := entKey(g.UserID, g.ToolID)
	if cur, ok := r.s.entitlements[k]; ok && !cur.ExpiresAt.Before(g.ExpiresAt) {
		return false, nil
	}
	r.s.entitlements[k] = &model.Entitlement{
		UserID:        g.UserID,
		ToolID:        g.ToolID,
		Active:        true,
		GrantedAt:     g.GrantedAt,
		ExpiresAt:     g.ExpiresAt,
		SourceOrderID: g.SourceRef,
		UpdatedAt:     time.Now(),
	}
	return true, nil
}
