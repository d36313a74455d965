package repository

import (
	"context"

	"rankblaze-entitlements/internal/domain/model"
)

// ToolRepository is the port for the tool catalog.
type ToolRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tool, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Tool, error)
	Save(ctx context.Context, tx Tx, t *model.Tool) error
}
