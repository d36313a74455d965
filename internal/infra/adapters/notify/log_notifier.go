package notify

import (
	"context"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
)

var (
	_ adapter.Notifier  = (*LogNotifier)(nil)
	_ adapter.AlertSink = (*LogNotifier)(nil)
)

// LogNotifier writes events and alerts to the structured log. It is always
// configured, so every grant leaves an audit line even without Kafka.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "audit").Logger()
	return &LogNotifier{log: &l}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, ev model.EventPayload) error {
	e := n.log.Info().
		Str("kind", string(ev.Kind)).
		Str("order_id", ev.OrderID).
		Str("user_id", ev.UserID).
		Str("tool_id", ev.ToolID).
		Int64("amount", ev.Amount).
		Str("gateway_txn_id", ev.GatewayTransactionID)
	if ev.ExpiresAt != nil {
		e = e.Time("expires_at", *ev.ExpiresAt)
	}
	e.Msg("event")
	return nil
}

func (n *LogNotifier) Alert(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("operator alert")
	return nil
}

// FanoutAlert delivers an alert to every sink and reports the first error.
type FanoutAlert []adapter.AlertSink

func (f FanoutAlert) Alert(ctx context.Context, text string) error {
	var firstErr error
	for _, s := range f {
		if err := s.Alert(ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
