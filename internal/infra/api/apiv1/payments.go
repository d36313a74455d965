package apiv1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
	"rankblaze-entitlements/internal/infra/worker"
	"rankblaze-entitlements/internal/usecase"
)

const callbackSignatureHeader = "X-VERIFY"

var reasonMessages = map[string]string{
	usecase.ReasonCompleted:          "payment.completed",
	usecase.ReasonPending:            "payment.pending",
	usecase.ReasonFailed:             "payment.failed",
	usecase.ReasonAmountMismatch:     "payment.amount_mismatch",
	usecase.ReasonOrderNotFound:      "payment.not_found",
	usecase.ReasonInFlight:           "payment.in_flight",
	usecase.ReasonGatewayUnavailable: "payment.unavailable",
	usecase.ReasonGatewayRejected:    "payment.rejected",
	usecase.ReasonInvalidRequest:     "payment.invalid",
	usecase.ReasonInternal:           "error.internal",
}

func messageKey(reason string) string {
	if k, ok := reasonMessages[reason]; ok {
		return k
	}
	return "error.internal"
}

func pollKey(orderID string) string { return "rate_limit:poll:" + orderID }

// PaymentCallback authenticates the gateway callback synchronously and hands
// reconciliation to the worker pool. Anything but a bad signature gets 200 so
// the gateway does not retry; the ack body is informational.
func (s *Server) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		metrics.IncCallback("read_error")
		writeJSON(w, http.StatusOK, CallbackAck{Status: "FAILED"})
		return
	}

	st, err := s.gateway.ValidateCallback(r.Header.Get(callbackSignatureHeader), body)
	if errors.Is(err, domain.ErrInvalidSignature) {
		metrics.IncCallback("invalid_signature")
		log.Warn().
			Str("event", "security").
			Str("remote_addr", r.RemoteAddr).
			Int("body_len", len(body)).
			Msg("callback rejected: invalid signature")
		writeJSON(w, http.StatusUnauthorized, CallbackAck{Status: "FAILED"})
		return
	}
	if err != nil {
		metrics.IncCallback("invalid_payload")
		log.Error().Err(err).Msg("callback payload unusable")
		writeJSON(w, http.StatusOK, CallbackAck{Status: "FAILED"})
		return
	}
	metrics.IncCallback("accepted")

	base := context.WithoutCancel(r.Context())
	timeout := s.webhookTimeout
	task := worker.Task(func(context.Context) error {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		_, err := s.reconcile.Reconcile(ctx, usecase.ReconcileRequest{
			OrderID:  st.OrderID,
			Trigger:  usecase.TriggerCallback,
			Callback: st,
		})
		return err
	})
	if s.pool == nil {
		_ = task(base)
	} else if err := s.pool.Submit(task); err != nil {
		log.Warn().Err(err).Msg("worker pool saturated, reconciling inline")
		_ = task(base)
	}

	writeJSON(w, http.StatusOK, CallbackAck{Status: ackStatus(st.State)})
}

func ackStatus(s model.GatewayState) string {
	switch s {
	case model.GatewayStateCompleted:
		return "SUCCESS"
	case model.GatewayStateFailed:
		return "FAILED"
	}
	return "PENDING"
}

// GetPaymentStatus is the front-end poll: it runs the Poll trigger and
// reports the order's state.
func (s *Server) GetPaymentStatus(w http.ResponseWriter, r *http.Request, orderID string) {
	ctx := logging.WithOrderID(r.Context(), orderID)
	log := logging.With(ctx, s.log)

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, pollKey(orderID), s.pollLimit, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing poll")
		} else if !ok {
			metrics.IncRateLimitTriggered("payment_status")
			s.fail(w, r, http.StatusTooManyRequests, "rate_limited", "error.rate_limited")
			return
		}
	}

	res, err := s.reconcile.Reconcile(ctx, usecase.ReconcileRequest{OrderID: orderID, Trigger: usecase.TriggerPoll})
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		s.fail(w, r, http.StatusBadRequest, "invalid_request", "payment.invalid")
		return
	case errors.Is(err, domain.ErrOrderNotFound):
		s.fail(w, r, http.StatusNotFound, "order_not_found", "payment.not_found")
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse(r, res))
}

func (s *Server) statusResponse(r *http.Request, res usecase.ReconcileResult) PaymentStatusResponse {
	out := PaymentStatusResponse{
		Success:       res.Success,
		Status:        string(res.Status),
		TransactionID: res.GatewayTransactionID,
		Retryable:     res.Retryable,
		Message:       s.tr(r, messageKey(res.Reason)),
	}
	switch {
	case res.Reason == usecase.ReasonInFlight:
		out.Status = "VERIFYING"
	case out.Status == "":
		out.Status = "UNKNOWN"
	}
	if res.Amount > 0 {
		amt := res.Amount
		out.Amount = &amt
	}
	return out
}

// ManualFix lets an admin re-run reconciliation for one order, including
// orders the store never recorded.
func (s *Server) ManualFix(w http.ResponseWriter, r *http.Request) {
	var req ManualFixRequest
	if err := decodeBody(r, &req); err != nil || req.MerchantTransactionID == "" {
		metrics.IncAdminRequest("manual_fix", "bad_request")
		s.fail(w, r, http.StatusBadRequest, "bad_request", "error.bad_request")
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.MerchantTransactionID)
	log := logging.With(ctx, s.log)

	res, err := s.reconcile.Reconcile(ctx, usecase.ReconcileRequest{
		OrderID: req.MerchantTransactionID,
		Trigger: usecase.TriggerManualFix,
		UserID:  req.UserID,
		ToolID:  req.ToolID,
	})

	code := http.StatusOK
	switch {
	case err == nil, errors.Is(err, domain.ErrAmountMismatch):
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrReconcileInFlight):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrGatewayRejected):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	metrics.IncAdminRequest("manual_fix", http.StatusText(code))
	log.Info().
		Str("user_id", req.UserID).
		Str("tool_id", req.ToolID).
		Str("reason", res.Reason).
		Bool("granted", res.Granted).
		Int("status", code).
		Msg("manual fix")

	out := ManualFixResponse{PaymentStatusResponse: s.statusResponse(r, res), Reason: res.Reason, Granted: res.Granted}
	if res.Entitlement != nil {
		exp := res.Entitlement.ExpiresAt
		out.ExpiresAt = &exp
	}
	writeJSON(w, code, out)
}
