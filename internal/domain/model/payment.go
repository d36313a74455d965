package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// GatewayState is the gateway-side payment state normalized across providers.
type GatewayState string

const (
	GatewayStateInitiated GatewayState = "INITIATED"
	GatewayStatePending   GatewayState = "PENDING"
	GatewayStateCompleted GatewayState = "COMPLETED"
	GatewayStateFailed    GatewayState = "FAILED"
)

// GatewayStatus is what the gateway reports for one merchant transaction,
// either polled or carried by an authenticated callback.
type GatewayStatus struct {
	OrderID              string
	State                GatewayState
	GatewayTransactionID string
	Amount               int64
	Code                 string // provider code, kept for logs only
	RawPayload           []byte
}

// Checkout is the result of initiating a payment at the gateway.
type Checkout struct {
	OrderID              string
	CheckoutURL          string
	GatewayTransactionID string // set when the provider issues its id at creation
}

// PaymentRecord is the append-only audit row written once per completed order.
type PaymentRecord struct {
	ID                   string
	UserID               string
	ToolID               string
	OrderID              string
	GatewayTransactionID string
	Amount               int64
	CompletedAt          time.Time
}

// NewPaymentRecord snapshots a completed order.
func NewPaymentRecord(o *Order, gatewayTxnID string, completedAt time.Time) *PaymentRecord {
	return &PaymentRecord{
		ID:                   ulid.Make().String(),
		UserID:               o.UserID,
		ToolID:               o.ToolID,
		OrderID:              o.ID,
		GatewayTransactionID: gatewayTxnID,
		Amount:               o.Amount,
		CompletedAt:          completedAt,
	}
}
