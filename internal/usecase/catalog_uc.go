// File: internal/usecase/catalog_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

type CatalogUseCase interface {
	ListTools(ctx context.Context, activeOnly bool) ([]*model.Tool, error)
	GetTool(ctx context.Context, id string) (*model.Tool, error)
	UpsertTool(ctx context.Context, in ToolInput) (*model.Tool, error)
}

// ToolInput is an admin edit. A nil Payload keeps the stored access material.
type ToolInput struct {
	ID           string
	Name         string
	PriceMinor   int64
	ValidityDays int
	Active       bool
	Payload      model.TokenPayload
}

type catalogUC struct {
	tools repository.ToolRepository
	log   *zerolog.Logger
}

func NewCatalogUseCase(tools repository.ToolRepository, logger *zerolog.Logger) *catalogUC {
	l := logger.With().Str("component", "catalog").Logger()
	return &catalogUC{tools: tools, log: &l}
}

func (u *catalogUC) ListTools(ctx context.Context, activeOnly bool) ([]*model.Tool, error) {
	all, err := u.tools.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	out := make([]*model.Tool, 0, len(all))
	for _, t := range all {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (u *catalogUC) GetTool(ctx context.Context, id string) (*model.Tool, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.tools.FindByID(ctx, repository.NoTX, id)
}

func (u *catalogUC) UpsertTool(ctx context.Context, in ToolInput) (*model.Tool, error) {
	payload := in.Payload
	if payload == nil {
		cur, err := u.tools.FindByID(ctx, repository.NoTX, in.ID)
		switch {
		case err == nil:
			payload = cur.Payload
		case !errors.Is(err, domain.ErrToolNotFound):
			return nil, err
		}
	}
	t, err := model.NewTool(in.ID, in.Name, in.PriceMinor, in.ValidityDays, payload)
	if err != nil {
		return nil, err
	}
	t.Active = in.Active
	t.UpdatedAt = time.Now()
	if err := u.tools.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	kind := ""
	if t.Payload != nil {
		kind = string(t.Payload.Kind())
	}
	u.log.Info().Str("tool_id", t.ID).Int64("price", t.PriceMinor).Bool("active", t.Active).Str("token_kind", kind).Msg("tool saved")
	return t, nil
}
