package adapter

import (
	"context"

	"rankblaze-entitlements/internal/domain/model"
)

// Notifier is one notification/audit sink. Delivery is at-least-once per
// outbox event; sinks must tolerate a redelivery after a crash.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev model.EventPayload) error
}

// AlertSink receives operator alerts (security events, inconsistencies).
type AlertSink interface {
	Alert(ctx context.Context, text string) error
}
