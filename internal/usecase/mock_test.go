//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/infra/db/memory"
	"rankblaze-entitlements/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu    sync.Mutex
	Calls int

	InitiateFunc         func(ctx context.Context, orderID string, amount int64, userID, toolID string) (*model.Checkout, error)
	GetStatusFunc        func(ctx context.Context, orderID string) (*model.GatewayStatus, error)
	ValidateCallbackFunc func(sig string, body []byte) (*model.GatewayStatus, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Initiate(ctx context.Context, orderID string, amount int64, userID, toolID string) (*model.Checkout, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, orderID, amount, userID, toolID)
	}
	return &model.Checkout{OrderID: orderID, CheckoutURL: "https://pay.test/" + orderID}, nil
}

func (m *MockGateway) GetStatus(ctx context.Context, orderID string) (*model.GatewayStatus, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, orderID)
	}
	return &model.GatewayStatus{OrderID: orderID, State: model.GatewayStatePending}, nil
}

func (m *MockGateway) ValidateCallback(sig string, body []byte) (*model.GatewayStatus, error) {
	if m.ValidateCallbackFunc != nil {
		return m.ValidateCallbackFunc(sig, body)
	}
	return nil, domain.ErrInvalidSignature
}

func (m *MockGateway) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func gatewayReports(state model.GatewayState, amount int64) *MockGateway {
	return &MockGateway{GetStatusFunc: func(_ context.Context, orderID string) (*model.GatewayStatus, error) {
		return &model.GatewayStatus{OrderID: orderID, State: state, GatewayTransactionID: "T-" + orderID, Amount: amount}, nil
	}}
}

// ---- Mock Notifier / AlertSink ----

type MockNotifier struct {
	mu       sync.Mutex
	name     string
	Received []model.EventPayload

	NotifyFunc func(ctx context.Context, ev model.EventPayload) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *MockNotifier) Notify(ctx context.Context, ev model.EventPayload) error {
	m.mu.Lock()
	m.Received = append(m.Received, ev)
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, ev)
	}
	return nil
}

type MockAlerts struct {
	mu    sync.Mutex
	Texts []string

	AlertFunc func(ctx context.Context, text string) error
}

var _ adapter.AlertSink = (*MockAlerts)(nil)

func (m *MockAlerts) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()
	if m.AlertFunc != nil {
		return m.AlertFunc(ctx, text)
	}
	return nil
}

func (m *MockAlerts) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Texts)
}

// ---- Mock Locker ----

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	UnlockFunc  func(ctx context.Context, key, token string) error
}

var _ adapter.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	return "token", nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, key, token)
	}
	return nil
}

// =============================
// Fixture
// =============================

type fixture struct {
	store   *memory.Store
	gateway *MockGateway
	alerts  *MockAlerts
	locker  adapter.Locker
}

func newFixture(gw *MockGateway) *fixture {
	f := &fixture{store: memory.NewStore(), gateway: gw, alerts: &MockAlerts{}, locker: memory.NewLocker()}
	tool, _ := model.NewTool("toolA", "Tool A", 349, 30, model.SingleToken{Token: "tok-A"})
	_ = f.store.Tools().Save(context.Background(), nil, tool)
	return f
}

func (f *fixture) engine(now time.Time) usecase.ReconcileUseCase {
	return usecase.NewReconcileUseCase(usecase.ReconcileDeps{
		Orders:       f.store.Orders(),
		Entitlements: f.store.Entitlements(),
		Records:      f.store.PaymentRecords(),
		Outbox:       f.store.Outbox(),
		Tools:        f.store.Tools(),
		TM:           f.store,
		Gateway:      f.gateway,
		Locker:       f.locker,
		Alerts:       f.alerts,
	}, model.DefaultValidity, time.Second, newTestLogger()).WithClock(fixedClock(now))
}

// seedOrder stores an order in the given status, walking the legal path.
func (f *fixture) seedOrder(id string, amount int64, status model.OrderStatus) *model.Order {
	ctx := context.Background()
	userID, toolID, _ := model.ParseOrderID(id)
	o := &model.Order{ID: id, UserID: userID, ToolID: toolID, Amount: amount, Status: model.OrderStatusCreated, CreatedAt: t0, UpdatedAt: t0}
	_ = f.store.Orders().Create(ctx, nil, o)
	if status == model.OrderStatusCreated {
		return o
	}
	o, _ = f.store.Orders().Transition(ctx, nil, id, model.OrderStatusInitiated, model.OrderFields{})
	if status != model.OrderStatusInitiated {
		o, _ = f.store.Orders().Transition(ctx, nil, id, status, model.OrderFields{})
	}
	return o
}
