package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/usecase"
)

// PaymentReconciler periodically polls non-terminal orders whose callback is
// overdue. It covers lost callbacks and crashes between checkout steps.
// Orders older than giveUpAfter are left to ManualFix.
type PaymentReconciler struct {
	uc          usecase.ReconcileUseCase
	orders      repository.OrderRepository
	interval    time.Duration // how often to scan
	staleAfter  time.Duration // how old an order must be before polling
	giveUpAfter time.Duration
	batch       int
	now         func() time.Time
	log         *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.ReconcileUseCase, orders repository.OrderRepository, interval, staleAfter, giveUpAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if giveUpAfter <= staleAfter {
		giveUpAfter = 72 * time.Hour
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:          uc,
		orders:      orders,
		interval:    interval,
		staleAfter:  staleAfter,
		giveUpAfter: giveUpAfter,
		batch:       200,
		now:         time.Now,
		log:         &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one scan and returns how many orders reached a terminal state.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	now := w.now()
	stale, err := w.orders.ListStaleNonTerminal(ctx, repository.NoTX, now.Add(-w.giveUpAfter), now.Add(-w.staleAfter), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale orders")
		return 0
	}
	settled := 0
	for _, o := range stale {
		if ctx.Err() != nil {
			break
		}
		res, err := w.uc.Reconcile(ctx, usecase.ReconcileRequest{OrderID: o.ID, Trigger: usecase.TriggerPoll})
		switch {
		case err == nil:
			if res.Status.IsTerminal() {
				settled++
			}
		case errors.Is(err, domain.ErrReconcileInFlight):
			// A callback holds the order; it will settle it.
		default:
			w.log.Warn().Err(err).Str("order_id", o.ID).Str("reason", res.Reason).Msg("poll reconcile failed")
		}
	}
	if len(stale) > 0 {
		w.log.Info().Int("scanned", len(stale)).Int("settled", settled).Msg("stale orders polled")
	}
	return settled
}
