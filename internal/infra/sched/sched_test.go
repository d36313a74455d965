//go:build !integration

package sched_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/infra/db/memory"
	"rankblaze-entitlements/internal/infra/sched"
	"rankblaze-entitlements/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type MockReconciler struct {
	mu   sync.Mutex
	Seen []string

	ReconcileFunc func(ctx context.Context, req usecase.ReconcileRequest) (usecase.ReconcileResult, error)
}

func (m *MockReconciler) Reconcile(ctx context.Context, req usecase.ReconcileRequest) (usecase.ReconcileResult, error) {
	m.mu.Lock()
	m.Seen = append(m.Seen, req.OrderID)
	m.mu.Unlock()
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, req)
	}
	return usecase.ReconcileResult{OrderID: req.OrderID, Status: model.OrderStatusCompleted, Success: true}, nil
}

type MockDispatcher struct {
	Calls  int
	Counts []int
}

func (m *MockDispatcher) DispatchBatch(_ context.Context, limit int) (int, error) {
	m.Calls++
	if len(m.Counts) == 0 {
		return 0, nil
	}
	n := m.Counts[0]
	m.Counts = m.Counts[1:]
	return n, nil
}

func seed(t *testing.T, s *memory.Store, id string, createdAt time.Time, status model.OrderStatus) {
	t.Helper()
	o := &model.Order{ID: id, UserID: "u1", ToolID: "toolA", Amount: 349, Status: model.OrderStatusCreated, CreatedAt: createdAt, UpdatedAt: createdAt}
	if err := s.Orders().Create(context.Background(), nil, o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if status == model.OrderStatusCreated {
		return
	}
	_, _ = s.Orders().Transition(context.Background(), nil, id, model.OrderStatusInitiated, model.OrderFields{})
	if status != model.OrderStatusInitiated {
		_, _ = s.Orders().Transition(context.Background(), nil, id, status, model.OrderFields{})
	}
}

func TestPaymentReconciler_Tick(t *testing.T) {
	// --- Arrange ---
	now := time.Now()
	s := memory.NewStore()
	seed(t, s, "ord_u1_toolA_fresh", now.Add(-time.Minute), model.OrderStatusInitiated)
	seed(t, s, "ord_u1_toolA_stale", now.Add(-30*time.Minute), model.OrderStatusInitiated)
	seed(t, s, "ord_u1_toolA_created", now.Add(-time.Hour), model.OrderStatusCreated)
	seed(t, s, "ord_u1_toolA_done", now.Add(-time.Hour), model.OrderStatusCompleted)
	seed(t, s, "ord_u1_toolA_ancient", now.Add(-100*time.Hour), model.OrderStatusInitiated)
	rec := &MockReconciler{}
	w := sched.NewPaymentReconciler(rec, s.Orders(), time.Minute, 10*time.Minute, 72*time.Hour, newTestLogger())

	// --- Act ---
	settled := w.Tick(context.Background())

	// --- Assert ---
	if settled != 2 {
		t.Errorf("expected 2 settled, got %d", settled)
	}
	want := map[string]bool{"ord_u1_toolA_stale": true, "ord_u1_toolA_created": true}
	if len(rec.Seen) != len(want) {
		t.Fatalf("unexpected polled orders: %v", rec.Seen)
	}
	for _, id := range rec.Seen {
		if !want[id] {
			t.Errorf("polled unexpected order %s", id)
		}
	}
}

func TestOutboxRelay_DrainsFullBatches(t *testing.T) {
	// --- Arrange ---
	d := &MockDispatcher{Counts: []int{2, 2, 1}}
	w := sched.NewOutboxRelay(time.Hour, 2, d, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	// --- Act ---
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// --- Assert ---
	if d.Calls != 3 {
		t.Errorf("expected 3 dispatch calls on startup, got %d", d.Calls)
	}
}
