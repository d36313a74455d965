// File: internal/usecase/outbox_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/metrics"
)

// Compile-time check
var _ OutboxUseCase = (*outboxUC)(nil)

type OutboxUseCase interface {
	// DispatchBatch delivers up to limit pending events to every notifier and
	// returns how many were fully delivered. A retry only reaches the notifiers
	// that failed; delivery stays at-least-once across a crash mid-batch.
	DispatchBatch(ctx context.Context, limit int) (int, error)
}

type outboxUC struct {
	outbox      repository.OutboxRepository
	tm          repository.TransactionManager
	notifiers   []adapter.Notifier
	alerts      adapter.AlertSink
	maxAttempts int
	log         *zerolog.Logger
}

func NewOutboxUseCase(outbox repository.OutboxRepository, tm repository.TransactionManager, notifiers []adapter.Notifier, alerts adapter.AlertSink, maxAttempts int, logger *zerolog.Logger) *outboxUC {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	l := logger.With().Str("component", "outbox").Logger()
	return &outboxUC{outbox: outbox, tm: tm, notifiers: notifiers, alerts: alerts, maxAttempts: maxAttempts, log: &l}
}

func (u *outboxUC) DispatchBatch(ctx context.Context, limit int) (int, error) {
	type dropped struct {
		ev    *model.OutboxEvent
		cause error
	}
	var (
		delivered int
		giveUps   []dropped
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		events, err := u.outbox.ClaimBatch(ctx, tx, limit, u.maxAttempts)
		if err != nil {
			return err
		}
		metrics.SetOutboxBatch(len(events))
		for _, ev := range events {
			derr, err := u.deliver(ctx, tx, ev)
			if err != nil {
				return err
			}
			if derr != nil {
				if err := u.outbox.MarkFailed(ctx, tx, ev.ID, derr.Error()); err != nil {
					return err
				}
				u.log.Warn().Err(derr).Str("event_id", ev.ID).Str("order_id", ev.OrderID).Int("attempt", ev.Attempts+1).Msg("outbox delivery failed")
				if ev.Attempts+1 >= u.maxAttempts {
					giveUps = append(giveUps, dropped{ev, derr})
				}
				continue
			}
			if err := u.outbox.MarkProcessed(ctx, tx, ev.ID); err != nil {
				return err
			}
			delivered++
		}
		return nil
	})
	if err == nil {
		for _, d := range giveUps {
			u.giveUp(ctx, d.ev, d.cause)
		}
	}
	return delivered, err
}

// deliver fans one event out to the sinks that have not accepted it yet and
// records each acceptance. derr is the first sink failure; err is a store error.
func (u *outboxUC) deliver(ctx context.Context, tx repository.Tx, ev *model.OutboxEvent) (derr, err error) {
	var p model.EventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		metrics.IncOutboxDispatch("decode", "error")
		return fmt.Errorf("decode payload: %w", err), nil
	}
	for _, n := range u.notifiers {
		if ev.DeliveredBy(n.Name()) {
			continue
		}
		if nerr := n.Notify(ctx, p); nerr != nil {
			metrics.IncOutboxDispatch(n.Name(), "error")
			if derr == nil {
				derr = fmt.Errorf("%s: %w", n.Name(), nerr)
			}
			continue
		}
		metrics.IncOutboxDispatch(n.Name(), "ok")
		if err := u.outbox.MarkDelivered(ctx, tx, ev.ID, n.Name()); err != nil {
			return nil, err
		}
	}
	return derr, nil
}

func (u *outboxUC) giveUp(ctx context.Context, ev *model.OutboxEvent, cause error) {
	u.log.Error().Err(cause).Str("event_id", ev.ID).Str("order_id", ev.OrderID).Msg("outbox event dropped after max attempts")
	if u.alerts == nil {
		return
	}
	text := fmt.Sprintf("outbox event %s (%s, order %s) undeliverable: %v", ev.ID, ev.Kind, ev.OrderID, cause)
	if err := u.alerts.Alert(ctx, text); err != nil {
		u.log.Error().Err(err).Msg("deliver alert")
	}
}
