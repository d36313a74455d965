package repository

import (
	"context"
	"time"

	"rankblaze-entitlements/internal/domain/model"
)

// OrderRepository is the port for checkout orders. Orders are never deleted.
type OrderRepository interface {
	// Create inserts a new order; domain.ErrDuplicateOrder if the id exists.
	Create(ctx context.Context, tx Tx, o *model.Order) error
	// FindByOrderID returns domain.ErrOrderNotFound when absent. With a tx the row is locked.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Order, error)
	// FindByGatewayID matches callbacks that carry only the provider's id.
	FindByGatewayID(ctx context.Context, tx Tx, gatewayTxnID string) (*model.Order, error)
	// Transition moves the order to next in a single conditional write and
	// returns the updated row. domain.ErrInvalidTransition when the current
	// status is terminal or next does not follow it.
	Transition(ctx context.Context, tx Tx, orderID string, next model.OrderStatus, f model.OrderFields) (*model.Order, error)
	// ListStaleNonTerminal returns CREATED/INITIATED orders with
	// createdAfter <= created_at < createdBefore, oldest first.
	ListStaleNonTerminal(ctx context.Context, tx Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Order, error)
}
