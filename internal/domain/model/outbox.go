package model

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventEntitlementGranted EventKind = "entitlement.granted"
	EventPaymentFailed      EventKind = "payment.failed"
)

// OutboxEvent is a side effect recorded in the same transaction as the state
// change that caused it. (OrderID, Kind) is unique, so replays enqueue nothing.
type OutboxEvent struct {
	ID          string
	OrderID     string
	Kind        EventKind
	Payload     []byte // JSON of EventPayload
	Attempts    int
	LastError   *string
	DeliveredTo []string // sinks that already accepted the event
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// DeliveredBy reports whether sink already accepted e.
func (e *OutboxEvent) DeliveredBy(sink string) bool {
	for _, s := range e.DeliveredTo {
		if s == sink {
			return true
		}
	}
	return false
}

// EventPayload is the JSON body delivered to notification sinks.
type EventPayload struct {
	Kind                 EventKind  `json:"kind"`
	OrderID              string     `json:"orderId"`
	UserID               string     `json:"userId"`
	ToolID               string     `json:"toolId"`
	Amount               int64      `json:"amount"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
	OccurredAt           time.Time  `json:"occurredAt"`
}

func NewOutboxEvent(orderID string, kind EventKind, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
