package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// Revenue sums completed payments since the start of the current calendar
	// day and month, in the clock's location.
	Revenue(ctx context.Context) (day int64, month int64, err error)
}

type statsUC struct {
	records repository.PaymentRecordRepository
	now     func() time.Time

	log *zerolog.Logger
}

func NewStatsUseCase(records repository.PaymentRecordRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{records: records, now: time.Now, log: logger}
}

func (s *statsUC) WithClock(now func() time.Time) *statsUC {
	s.now = now
	return s
}

func (s *statsUC) Revenue(ctx context.Context) (int64, int64, error) {
	now := s.now()
	y, mon, day := now.Date()
	d, err := s.records.SumSince(ctx, repository.NoTX, time.Date(y, mon, day, 0, 0, 0, 0, now.Location()))
	if err != nil {
		return 0, 0, err
	}
	m, err := s.records.SumSince(ctx, repository.NoTX, time.Date(y, mon, 1, 0, 0, 0, 0, now.Location()))
	if err != nil {
		return 0, 0, err
	}
	return d, m, nil
}
