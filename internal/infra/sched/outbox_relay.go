package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/usecase"
)

// OutboxRelay drains the outbox into the notification sinks.
type OutboxRelay struct {
	interval time.Duration
	batch    int
	uc       usecase.OutboxUseCase
	log      *zerolog.Logger
}

func NewOutboxRelay(interval time.Duration, batch int, uc usecase.OutboxUseCase, logger *zerolog.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	compLog := logger.With().Str("component", "OutboxRelay").Logger()
	return &OutboxRelay{interval: interval, batch: batch, uc: uc, log: &compLog}
}

func (w *OutboxRelay) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting outbox relay")
	// Run once on startup, then on every tick
	w.drain(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain keeps dispatching while full batches come back.
func (w *OutboxRelay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.uc.DispatchBatch(ctx, w.batch)
		if err != nil {
			w.log.Error().Err(err).Msg("outbox dispatch failed")
			return
		}
		if n > 0 {
			w.log.Debug().Int("count", n).Msg("outbox events delivered")
		}
		if n < w.batch {
			return
		}
	}
}
