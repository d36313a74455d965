//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/infra/worker"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestPool(t *testing.T) {
	t.Run("runs submitted tasks and drains on stop", func(t *testing.T) {
		// --- Arrange ---
		p := worker.NewPool(2, newTestLogger())
		p.Start(context.Background())
		var ran int32

		// --- Act ---
		for i := 0; i < 6; i++ {
			if err := p.Submit(func(context.Context) error {
				atomic.AddInt32(&ran, 1)
				return nil
			}); err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		p.Stop()

		// --- Assert ---
		if got := atomic.LoadInt32(&ran); got != 6 {
			t.Errorf("expected 6 tasks run, got %d", got)
		}
	})

	t.Run("reports a full queue", func(t *testing.T) {
		// --- Arrange ---
		p := worker.NewPool(1, newTestLogger()) // not started: nothing consumes
		noop := func(context.Context) error { return nil }
		for i := 0; i < 4; i++ {
			_ = p.Submit(noop)
		}

		// --- Act ---
		err := p.Submit(noop)

		// --- Assert ---
		if !errors.Is(err, worker.ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("survives a panicking task", func(t *testing.T) {
		p := worker.NewPool(1, newTestLogger())
		p.Start(context.Background())
		var ran int32

		_ = p.Submit(func(context.Context) error { panic("boom") })
		_ = p.Submit(func(context.Context) error { atomic.AddInt32(&ran, 1); return nil })
		p.Stop()

		if atomic.LoadInt32(&ran) != 1 {
			t.Errorf("worker died after panic")
		}
	})
}
