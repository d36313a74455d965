package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*PhonePeGateway)(nil)

const (
	phonePePayPath    = "/pg/v1/pay"
	phonePeStatusPath = "/pg/v1/status"
	checksumSep       = "###"
)

// PhonePeGateway implements adapter.PaymentGateway against the PhonePe
// checksum (X-VERIFY) API.
type PhonePeGateway struct {
	cfg    config.GatewayConfig
	base   string
	client *http.Client
}

func NewPhonePeGateway(cfg config.GatewayConfig) (*PhonePeGateway, error) {
	if cfg.MerchantID == "" || cfg.SaltKey == "" {
		return nil, errors.New("phonepe merchant id and salt key are required")
	}
	if cfg.SaltIndex == "" {
		cfg.SaltIndex = "1"
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid phonepe base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PhonePeGateway{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (g *PhonePeGateway) Name() string { return "phonepe" }

// checksum is sha256(parts... + saltKey) + "###" + saltIndex.
func (g *PhonePeGateway) checksum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
	}
	io.WriteString(h, g.cfg.SaltKey)
	return hex.EncodeToString(h.Sum(nil)) + checksumSep + g.cfg.SaltIndex
}

type phonePeEnvelope struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    phonePeTxnData `json:"data"`
}

type phonePeTxnData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
	InstrumentResponse    struct {
		RedirectInfo struct {
			URL string `json:"url"`
		} `json:"redirectInfo"`
	} `json:"instrumentResponse"`
}

func (g *PhonePeGateway) Initiate(ctx context.Context, orderID string, amount int64, userID, toolID string) (*model.Checkout, error) {
	start := time.Now()
	payload := map[string]any{
		"merchantId":            g.cfg.MerchantID,
		"merchantTransactionId": orderID,
		"merchantUserId":        userID,
		"amount":                amount,
		"redirectUrl":           g.cfg.RedirectURL,
		"redirectMode":          "REDIRECT",
		"callbackUrl":           g.cfg.CallbackURL,
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	}
	b, _ := json.Marshal(payload)
	encoded := base64.StdEncoding.EncodeToString(b)
	body, _ := json.Marshal(map[string]string{"request": encoded})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+phonePePayPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.checksum(encoded, phonePePayPath))

	env, status, err := g.do(req)
	if err != nil {
		g.observe("initiate", err, start)
		return nil, err
	}
	if status >= 400 || !env.Success || env.Data.InstrumentResponse.RedirectInfo.URL == "" {
		err = fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason(env, status))
		g.observe("initiate", err, start)
		return nil, err
	}
	g.observe("initiate", nil, start)
	return &model.Checkout{
		OrderID:              orderID,
		CheckoutURL:          env.Data.InstrumentResponse.RedirectInfo.URL,
		GatewayTransactionID: env.Data.TransactionID,
	}, nil
}

func (g *PhonePeGateway) GetStatus(ctx context.Context, orderID string) (*model.GatewayStatus, error) {
	start := time.Now()
	path := fmt.Sprintf("%s/%s/%s", phonePeStatusPath, g.cfg.MerchantID, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.checksum(path))
	req.Header.Set("X-MERCHANT-ID", g.cfg.MerchantID)

	env, status, err := g.do(req)
	if err != nil {
		g.observe("status", err, start)
		return nil, err
	}
	if env.Code == "TRANSACTION_NOT_FOUND" {
		g.observe("status", nil, start)
		return &model.GatewayStatus{OrderID: orderID, State: model.GatewayStatePending, Code: env.Code}, nil
	}
	if status >= 400 {
		err = fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason(env, status))
		g.observe("status", err, start)
		return nil, err
	}
	g.observe("status", nil, start)
	st := normalize(env)
	if st.OrderID == "" {
		st.OrderID = orderID
	}
	return st, nil
}

// ValidateCallback checks X-VERIFY over the base64 response field before
// decoding anything from it. A callback may name the order by the merchant
// transaction id, the PhonePe transaction id, or both.
func (g *PhonePeGateway) ValidateCallback(signatureHeader string, rawBody []byte) (*model.GatewayStatus, error) {
	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rawBody, &body); err != nil || body.Response == "" {
		return nil, domain.ErrInvalidSignature
	}
	expected := g.checksum(body.Response)
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(signatureHeader)), []byte(expected)) != 1 {
		return nil, domain.ErrInvalidSignature
	}
	decoded, err := base64.StdEncoding.DecodeString(body.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload", domain.ErrInvalidArgument)
	}
	var env phonePeEnvelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		return nil, fmt.Errorf("%w: bad callback json", domain.ErrInvalidArgument)
	}
	if env.Data.MerchantTransactionID == "" && env.Data.TransactionID == "" {
		return nil, fmt.Errorf("%w: callback without transaction id", domain.ErrInvalidArgument)
	}
	st := normalize(&env)
	st.RawPayload = decoded
	return st, nil
}

func (g *PhonePeGateway) do(req *http.Request) (*phonePeEnvelope, int, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, resp.StatusCode, fmt.Errorf("%w: http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	env := &phonePeEnvelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: undecodable response (http %d)", domain.ErrGatewayRejected, resp.StatusCode)
	}
	return env, resp.StatusCode, nil
}

func (g *PhonePeGateway) observe(op string, err error, start time.Time) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrGatewayUnavailable):
		result = "unavailable"
	case err != nil:
		result = "rejected"
	}
	metrics.ObserveGatewayCall(g.Name(), op, result, time.Since(start).Seconds())
}

// normalize maps a PhonePe envelope onto the provider-neutral state.
func normalize(env *phonePeEnvelope) *model.GatewayStatus {
	st := &model.GatewayStatus{
		OrderID:              env.Data.MerchantTransactionID,
		GatewayTransactionID: env.Data.TransactionID,
		Amount:               env.Data.Amount,
		Code:                 env.Code,
	}
	switch strings.ToUpper(env.Data.State) {
	case "COMPLETED":
		st.State = model.GatewayStateCompleted
	case "FAILED":
		st.State = model.GatewayStateFailed
	case "PENDING":
		st.State = model.GatewayStatePending
	default:
		switch env.Code {
		case "PAYMENT_SUCCESS":
			st.State = model.GatewayStateCompleted
		case "PAYMENT_ERROR", "PAYMENT_DECLINED", "TIMED_OUT", "PAYMENT_CANCELLED":
			st.State = model.GatewayStateFailed
		case "PAYMENT_INITIATED":
			st.State = model.GatewayStateInitiated
		default:
			st.State = model.GatewayStatePending
		}
	}
	return st
}

func reason(env *phonePeEnvelope, status int) string {
	if env == nil {
		return fmt.Sprintf("http %d", status)
	}
	if env.Message != "" {
		return fmt.Sprintf("%s: %s", env.Code, env.Message)
	}
	if env.Code != "" {
		return env.Code
	}
	return fmt.Sprintf("http %d", status)
}
