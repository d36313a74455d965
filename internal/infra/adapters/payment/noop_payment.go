package payment

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway to use in dev mode and tests.
// Payments stay PENDING until Settle is called.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]*model.GatewayStatus
	secret  string
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]*model.GatewayStatus),
		secret:  "noop",
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) Initiate(ctx context.Context, orderID string, amount int64, userID, toolID string) (*model.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[orderID]
	if !ok {
		st = &model.GatewayStatus{OrderID: orderID, State: model.GatewayStatePending, Amount: amount, GatewayTransactionID: g.next()}
		g.intents[orderID] = st
	}
	return &model.Checkout{OrderID: orderID, CheckoutURL: "https://example.test/pay/" + orderID, GatewayTransactionID: st.GatewayTransactionID}, nil
}

func (g *NoopPaymentGateway) GetStatus(ctx context.Context, orderID string) (*model.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[orderID]
	if !ok {
		return &model.GatewayStatus{OrderID: orderID, State: model.GatewayStatePending, Code: "TRANSACTION_NOT_FOUND"}, nil
	}
	cp := *st
	return &cp, nil
}

// Settle moves a payment to a final state, as if the user finished checkout.
func (g *NoopPaymentGateway) Settle(orderID string, state model.GatewayState, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[orderID]
	if !ok {
		st = &model.GatewayStatus{OrderID: orderID}
		g.intents[orderID] = st
	}
	st.State = state
	st.Amount = amount
	if st.GatewayTransactionID == "" {
		st.GatewayTransactionID = g.next()
	}
}

type noopCallback struct {
	OrderID              string             `json:"orderId"`
	State                model.GatewayState `json:"state"`
	GatewayTransactionID string             `json:"transactionId"`
	Amount               int64              `json:"amount"`
}

// Sign returns the signature header ValidateCallback accepts for body.
func (g *NoopPaymentGateway) Sign(body []byte) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(g.secret))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *NoopPaymentGateway) ValidateCallback(signatureHeader string, rawBody []byte) (*model.GatewayStatus, error) {
	if subtle.ConstantTimeCompare([]byte(signatureHeader), []byte(g.Sign(rawBody))) != 1 {
		return nil, domain.ErrInvalidSignature
	}
	var cb noopCallback
	if err := json.Unmarshal(rawBody, &cb); err != nil || (cb.OrderID == "" && cb.GatewayTransactionID == "") {
		return nil, domain.ErrInvalidArgument
	}
	return &model.GatewayStatus{
		OrderID:              cb.OrderID,
		State:                cb.State,
		GatewayTransactionID: cb.GatewayTransactionID,
		Amount:               cb.Amount,
		RawPayload:           rawBody,
	}, nil
}
