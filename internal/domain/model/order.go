package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"rankblaze-entitlements/internal/domain"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"   // persisted, not yet sent to the gateway
	OrderStatusInitiated OrderStatus = "INITIATED" // gateway accepted the pay request
	OrderStatusCompleted OrderStatus = "COMPLETED" // terminal
	OrderStatusFailed    OrderStatus = "FAILED"    // terminal
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// CanTransitionTo encodes CREATED -> INITIATED -> {COMPLETED, FAILED}.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusInitiated
	case OrderStatusInitiated:
		return next == OrderStatusCompleted || next == OrderStatusFailed
	default:
		return false
	}
}

// Order is one checkout attempt for a single tool.
type Order struct {
	ID                   string // merchant transaction id, e.g. ord_u1_toolA_01J...
	UserID               string
	ToolID               string
	Amount               int64 // minor currency unit (paise)
	Status               OrderStatus
	GatewayTransactionID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderFields carries the optional columns updated together with a transition.
type OrderFields struct {
	GatewayTransactionID *string
}

const orderIDPrefix = "ord"

// NewOrder validates and constructs a CREATED order with a fresh merchant id.
func NewOrder(userID, toolID string, amount int64) (*Order, error) {
	if userID == "" || toolID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if strings.Contains(userID, "_") || strings.Contains(toolID, "_") {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:        NewOrderID(userID, toolID),
		UserID:    userID,
		ToolID:    toolID,
		Amount:    amount,
		Status:    OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewOrderID builds ord_<userID>_<toolID>_<ulid>.
func NewOrderID(userID, toolID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", orderIDPrefix, userID, toolID, ulid.Make().String())
}

// ParseOrderID extracts the user and tool ids embedded in a composite order id.
// It is only a recovery aid for orders missing from the store.
func ParseOrderID(id string) (userID, toolID string, ok bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 4 || parts[0] != orderIDPrefix {
		return "", "", false
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
