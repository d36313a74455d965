package repository

import (
	"context"
	"time"

	"rankblaze-entitlements/internal/domain/model"
)

// EntitlementRepository is the port for the (user, tool) entitlement table.
type EntitlementRepository interface {
	// Grant is an idempotent upsert. When an active, unexpired entitlement
	// sourced from orderID already exists it is returned unchanged with
	// granted=false; otherwise the row is (re)written from now.
	Grant(ctx context.Context, tx Tx, userID, toolID, orderID string, validity time.Duration, now time.Time) (e *model.Entitlement, granted bool, err error)
	// Find returns domain.ErrNotFound when no row exists. Never mutates.
	Find(ctx context.Context, tx Tx, userID, toolID string) (*model.Entitlement, error)
	FindBySourceOrder(ctx context.Context, tx Tx, orderID string) (*model.Entitlement, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Entitlement, error)
	// Revoke sets active=false; domain.ErrNotFound when no row exists.
	Revoke(ctx context.Context, tx Tx, userID, toolID string) error
	// ImportLegacy writes g unless an entitlement expiring later already exists.
	ImportLegacy(ctx context.Context, tx Tx, g model.LegacyGrant) (bool, error)
}
