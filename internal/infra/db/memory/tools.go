package memory

import (
	"context"
	"sort"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.ToolRepository = (*ToolRepo)(nil)

type ToolRepo struct{ s *Store }

func (r *ToolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tool, error) {
	defer r.s.lock(tx)()
	t, ok := r.s.tools[id]
	if !ok {
		return nil, domain.ErrToolNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *ToolRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tool, error) {
	defer r.s.lock(tx)()
	out := make([]*model.Tool, 0, len(r.s.tools))
	for _, t := range r.s.tools {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ToolRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tool) error {
	defer r.s.lock(tx)()
	cp := *t
	r.s.tools[t.ID] = &cp
	return nil
}
