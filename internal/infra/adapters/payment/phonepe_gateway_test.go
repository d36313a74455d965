//go:build !integration

package payment

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
)

const (
	testMerchant = "MERCHANTUAT"
	testSalt     = "salt-key-123"
)

func newTestGateway(t *testing.T, baseURL string) *PhonePeGateway {
	t.Helper()
	g, err := NewPhonePeGateway(config.GatewayConfig{
		BaseURL:     baseURL,
		MerchantID:  testMerchant,
		SaltKey:     testSalt,
		SaltIndex:   "1",
		RedirectURL: "https://rankblaze.test/return",
		CallbackURL: "https://rankblaze.test/api/v1/payments/callback",
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewPhonePeGateway: %v", err)
	}
	return g
}

func xverify(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "") + testSalt))
	return hex.EncodeToString(sum[:]) + "###1"
}

func TestPhonePeGateway_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("should sign the pay request and return the redirect url", func(t *testing.T) {
		// --- Arrange ---
		var gotVerify, gotRequest string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/pg/v1/pay" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				Request string `json:"request"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotRequest = body.Request
			gotVerify = r.Header.Get("X-VERIFY")
			_, _ = io.WriteString(w, `{"success":true,"code":"PAYMENT_INITIATED","data":{"merchantTransactionId":"ord_u1_t1_A","instrumentResponse":{"redirectInfo":{"url":"https://pay.test/xyz"}}}}`)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		co, err := g.Initiate(ctx, "ord_u1_t1_A", 49900, "u1", "t1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if co.CheckoutURL != "https://pay.test/xyz" {
			t.Errorf("unexpected checkout url %q", co.CheckoutURL)
		}
		if gotVerify != xverify(gotRequest, "/pg/v1/pay") {
			t.Errorf("X-VERIFY mismatch: got %q", gotVerify)
		}
		decoded, _ := base64.StdEncoding.DecodeString(gotRequest)
		var payload map[string]any
		_ = json.Unmarshal(decoded, &payload)
		if payload["merchantTransactionId"] != "ord_u1_t1_A" || payload["amount"].(float64) != 49900 {
			t.Errorf("unexpected pay payload %v", payload)
		}
	})

	t.Run("should surface a 4xx as ErrGatewayRejected with the reason", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"success":false,"code":"BAD_REQUEST","message":"Please check the inputs you have provided."}`)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		_, err := g.Initiate(ctx, "ord_u1_t1_A", 100, "u1", "t1")

		// --- Assert ---
		if !errors.Is(err, domain.ErrGatewayRejected) {
			t.Fatalf("expected ErrGatewayRejected, got %v", err)
		}
		if !strings.Contains(err.Error(), "BAD_REQUEST") {
			t.Errorf("expected provider code in error, got %v", err)
		}
	})

	t.Run("should map a 5xx to ErrGatewayUnavailable", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		_, err := g.Initiate(ctx, "ord_u1_t1_A", 100, "u1", "t1")

		// --- Assert ---
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})
}

func TestPhonePeGateway_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("should normalize a completed payment", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := "/pg/v1/status/" + testMerchant + "/ord_u1_t1_A"
			if r.URL.Path != path {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("X-VERIFY") != xverify(path) {
				t.Errorf("bad X-VERIFY %q", r.Header.Get("X-VERIFY"))
			}
			if r.Header.Get("X-MERCHANT-ID") != testMerchant {
				t.Errorf("missing X-MERCHANT-ID")
			}
			_, _ = io.WriteString(w, `{"success":true,"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"ord_u1_t1_A","transactionId":"T123","amount":49900,"state":"COMPLETED"}}`)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		st, err := g.GetStatus(ctx, "ord_u1_t1_A")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.State != model.GatewayStateCompleted || st.GatewayTransactionID != "T123" || st.Amount != 49900 {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("should report an unknown transaction as pending", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"code":"TRANSACTION_NOT_FOUND","message":"No Transaction found with the given details."}`)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		st, err := g.GetStatus(ctx, "ord_u1_t1_A")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.State != model.GatewayStatePending {
			t.Errorf("expected PENDING, got %s", st.State)
		}
	})

	t.Run("should map a failed payment", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false,"code":"PAYMENT_ERROR","data":{"merchantTransactionId":"ord_u1_t1_A","state":"FAILED"}}`)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)

		// --- Act ---
		st, err := g.GetStatus(ctx, "ord_u1_t1_A")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.State != model.GatewayStateFailed {
			t.Errorf("expected FAILED, got %s", st.State)
		}
	})

	t.Run("should map a timeout to ErrGatewayUnavailable", func(t *testing.T) {
		// --- Arrange ---
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		g := newTestGateway(t, srv.URL)
		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		// --- Act ---
		_, err := g.GetStatus(tctx, "ord_u1_t1_A")

		// --- Assert ---
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})
}

func TestPhonePeGateway_ValidateCallback(t *testing.T) {
	g := newTestGateway(t, "https://api.phonepe.test")
	inner := `{"success":true,"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"ord_u1_t1_A","transactionId":"T9","amount":49900,"state":"COMPLETED"}}`
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))
	body := []byte(`{"response":"` + encoded + `"}`)

	t.Run("should accept a correctly signed callback", func(t *testing.T) {
		// --- Act ---
		st, err := g.ValidateCallback(xverify(encoded), body)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.OrderID != "ord_u1_t1_A" || st.State != model.GatewayStateCompleted || st.GatewayTransactionID != "T9" {
			t.Errorf("unexpected status %+v", st)
		}
		if string(st.RawPayload) != inner {
			t.Errorf("expected raw payload to be the decoded response")
		}
	})

	t.Run("should reject a tampered signature", func(t *testing.T) {
		// --- Act ---
		_, err := g.ValidateCallback(xverify(encoded+"x"), body)

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("should reject a missing signature", func(t *testing.T) {
		// --- Act ---
		_, err := g.ValidateCallback("", body)

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("should accept a callback carrying only the gateway transaction id", func(t *testing.T) {
		// --- Arrange ---
		only := base64.StdEncoding.EncodeToString([]byte(`{"success":true,"code":"PAYMENT_SUCCESS","data":{"transactionId":"T123","state":"COMPLETED"}}`))

		// --- Act ---
		st, err := g.ValidateCallback(xverify(only), []byte(`{"response":"`+only+`"}`))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.OrderID != "" || st.GatewayTransactionID != "T123" || st.State != model.GatewayStateCompleted {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("should reject a signed callback without any transaction id", func(t *testing.T) {
		none := base64.StdEncoding.EncodeToString([]byte(`{"success":true,"data":{"state":"COMPLETED"}}`))

		_, err := g.ValidateCallback(xverify(none), []byte(`{"response":"`+none+`"}`))

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject a body without response field", func(t *testing.T) {
		// --- Act ---
		_, err := g.ValidateCallback(xverify(""), []byte(`{}`))

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestNoopPaymentGateway(t *testing.T) {
	ctx := context.Background()
	g := NewNoopPaymentGateway()

	t.Run("should stay pending until settled", func(t *testing.T) {
		// --- Arrange ---
		if _, err := g.Initiate(ctx, "ord_u1_t1_B", 100, "u1", "t1"); err != nil {
			t.Fatalf("Initiate: %v", err)
		}

		// --- Act ---
		before, _ := g.GetStatus(ctx, "ord_u1_t1_B")
		g.Settle("ord_u1_t1_B", model.GatewayStateCompleted, 100)
		after, _ := g.GetStatus(ctx, "ord_u1_t1_B")

		// --- Assert ---
		if before.State != model.GatewayStatePending {
			t.Errorf("expected PENDING before settle, got %s", before.State)
		}
		if after.State != model.GatewayStateCompleted || after.GatewayTransactionID == "" {
			t.Errorf("unexpected settled status %+v", after)
		}
	})

	t.Run("should verify its own signatures", func(t *testing.T) {
		// --- Arrange ---
		body := []byte(`{"orderId":"ord_u1_t1_B","state":"COMPLETED","amount":100}`)

		// --- Act ---
		_, okErr := g.ValidateCallback(g.Sign(body), body)
		_, badErr := g.ValidateCallback("deadbeef", body)

		// --- Assert ---
		if okErr != nil {
			t.Errorf("expected valid signature, got %v", okErr)
		}
		if !errors.Is(badErr, domain.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", badErr)
		}
	})
}
