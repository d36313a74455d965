// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// Trigger names what started a reconciliation.
type Trigger string

const (
	TriggerCallback  Trigger = "callback"
	TriggerPoll      Trigger = "poll"
	TriggerManualFix Trigger = "manual_fix"
)

// Reasons carried in ReconcileResult. The HTTP layer maps them to messages.
const (
	ReasonCompleted          = "completed"
	ReasonPending            = "pending"
	ReasonFailed             = "failed"
	ReasonAmountMismatch     = "amount_mismatch"
	ReasonOrderNotFound      = "order_not_found"
	ReasonInFlight           = "in_flight"
	ReasonGatewayUnavailable = "gateway_unavailable"
	ReasonGatewayRejected    = "gateway_rejected"
	ReasonInvalidRequest     = "invalid_request"
	ReasonInternal           = "internal"
)

type ReconcileRequest struct {
	OrderID string
	Trigger Trigger
	// Callback is the already-authenticated gateway payload (TriggerCallback only).
	Callback *model.GatewayStatus
	// UserID/ToolID are optional ManualFix hints for orders missing from the store.
	UserID string
	ToolID string
}

// ReconcileResult is the outcome every trigger gets back, errors included.
type ReconcileResult struct {
	OrderID              string
	Success              bool
	Status               model.OrderStatus // empty when the order is unknown
	Retryable            bool
	Reason               string
	Granted              bool // this run wrote the entitlement
	Entitlement          *model.Entitlement
	GatewayTransactionID string
	Amount               int64
}

type ReconcileUseCase interface {
	// Reconcile drives one order towards a terminal state. The returned error
	// is informational; the result is always populated.
	Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error)
}

type ReconcileDeps struct {
	Orders       repository.OrderRepository
	Entitlements repository.EntitlementRepository
	Records      repository.PaymentRecordRepository
	Outbox       repository.OutboxRepository
	Tools        repository.ToolRepository
	TM           repository.TransactionManager
	Gateway      adapter.PaymentGateway
	Locker       adapter.Locker
	Alerts       adapter.AlertSink
}

type reconcileUC struct {
	orders       repository.OrderRepository
	entitlements repository.EntitlementRepository
	records      repository.PaymentRecordRepository
	outbox       repository.OutboxRepository
	tools        repository.ToolRepository
	tm           repository.TransactionManager
	gateway      adapter.PaymentGateway
	locker       adapter.Locker
	alerts       adapter.AlertSink

	validity time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReconcileUseCase(d ReconcileDeps, validity, lockTTL time.Duration, logger *zerolog.Logger) *reconcileUC {
	if validity <= 0 {
		validity = model.DefaultValidity
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "reconcile").Logger()
	return &reconcileUC{
		orders:       d.Orders,
		entitlements: d.Entitlements,
		records:      d.Records,
		outbox:       d.Outbox,
		tools:        d.Tools,
		tm:           d.TM,
		gateway:      d.Gateway,
		locker:       d.Locker,
		alerts:       d.Alerts,
		validity:     validity,
		lockTTL:      lockTTL,
		now:          time.Now,
		log:          &l,
	}
}

// WithClock swaps the time source; tests use it to pin grant windows.
func (uc *reconcileUC) WithClock(now func() time.Time) *reconcileUC {
	uc.now = now
	return uc
}

func orderLockKey(orderID string) string { return "lock:order:" + orderID }

func (uc *reconcileUC) Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error) {
	start := time.Now()
	req = uc.resolveCallbackOrder(ctx, req)
	ctx = logging.WithTrigger(logging.WithOrderID(ctx, req.OrderID), string(req.Trigger))
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "ReconcileUC.Reconcile")()

	res, err := uc.reconcile(ctx, log, req)
	res.OrderID = req.OrderID

	outcome := res.Reason
	if outcome == "" {
		outcome = ReasonInternal
	}
	metrics.ObserveReconcile(string(req.Trigger), outcome, time.Since(start).Seconds())
	switch {
	case err == nil:
		log.Debug().Str("status", string(res.Status)).Str("reason", res.Reason).Bool("granted", res.Granted).Msg("reconciled")
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrReconcileInFlight):
		log.Warn().Err(err).Msg("reconcile skipped")
	default:
		log.Error().Err(err).Str("reason", res.Reason).Bool("retryable", res.Retryable).Msg("reconcile failed")
	}
	return res, err
}

// resolveCallbackOrder maps a callback onto a stored order by the gateway's
// transaction id when the merchant id is missing or unknown to the store.
func (uc *reconcileUC) resolveCallbackOrder(ctx context.Context, req ReconcileRequest) ReconcileRequest {
	if req.Trigger != TriggerCallback || req.Callback == nil || req.Callback.GatewayTransactionID == "" {
		return req
	}
	if req.OrderID != "" {
		if _, err := uc.orders.FindByOrderID(ctx, repository.NoTX, req.OrderID); !errors.Is(err, domain.ErrOrderNotFound) {
			return req
		}
	}
	o, err := uc.orders.FindByGatewayID(ctx, repository.NoTX, req.Callback.GatewayTransactionID)
	if err != nil {
		return req
	}
	cb := *req.Callback
	cb.OrderID = o.ID
	req.Callback = &cb
	req.OrderID = o.ID
	return req
}

func (uc *reconcileUC) reconcile(ctx context.Context, log *zerolog.Logger, req ReconcileRequest) (ReconcileResult, error) {
	if req.OrderID == "" {
		if req.Trigger == TriggerCallback && req.Callback != nil && req.Callback.GatewayTransactionID != "" {
			// Only the gateway id was given and no stored order carries it.
			return ReconcileResult{Reason: ReasonOrderNotFound}, domain.ErrOrderNotFound
		}
		return ReconcileResult{Reason: ReasonInvalidRequest}, domain.ErrInvalidArgument
	}
	switch req.Trigger {
	case TriggerCallback:
		if req.Callback == nil || req.Callback.OrderID != req.OrderID {
			return ReconcileResult{Reason: ReasonInvalidRequest}, domain.ErrInvalidArgument
		}
	case TriggerPoll, TriggerManualFix:
	default:
		return ReconcileResult{Reason: ReasonInvalidRequest}, domain.ErrInvalidArgument
	}

	// The lock is the transient VERIFYING state; the row lock inside each
	// transaction still guards against a lease that expired mid-run.
	key := orderLockKey(req.OrderID)
	token, err := uc.locker.TryLock(ctx, key, uc.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrReconcileInFlight) {
			return ReconcileResult{Retryable: true, Reason: ReasonInFlight}, err
		}
		return ReconcileResult{Retryable: true, Reason: ReasonInternal}, fmt.Errorf("acquire order lock: %w", err)
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := uc.locker.Unlock(uctx, key, token); err != nil {
			log.Warn().Err(err).Msg("release order lock")
		}
	}()

	order, err := uc.orders.FindByOrderID(ctx, repository.NoTX, req.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		if req.Trigger == TriggerManualFix {
			return uc.recoverMissing(ctx, log, req)
		}
		return ReconcileResult{Reason: ReasonOrderNotFound}, domain.ErrOrderNotFound
	}
	if err != nil {
		return ReconcileResult{Retryable: true, Reason: ReasonInternal}, err
	}

	switch order.Status {
	case model.OrderStatusCompleted:
		// Terminal: report the stored outcome, finishing a grant an earlier run
		// never wrote.
		return uc.complete(ctx, log, order, nil, false)
	case model.OrderStatusFailed:
		return resultFor(order, ReasonFailed), nil
	}

	st, res, err := uc.gatewayStatus(ctx, req)
	if err != nil {
		res.Status = order.Status
		return res, err
	}

	switch st.State {
	case model.GatewayStateCompleted:
		if st.Amount != 0 && st.Amount != order.Amount {
			uc.alert(ctx, log, fmt.Sprintf("amount mismatch on %s: order=%d gateway=%d (%s)", order.ID, order.Amount, st.Amount, req.Trigger))
			res, ferr := uc.fail(ctx, log, order, st, ReasonAmountMismatch)
			if ferr != nil {
				return res, ferr
			}
			return res, domain.ErrAmountMismatch
		}
		return uc.complete(ctx, log, order, st, false)
	case model.GatewayStateFailed:
		return uc.fail(ctx, log, order, st, ReasonFailed)
	default:
		// PENDING / INITIATED: nothing to do yet.
		r := resultFor(order, ReasonPending)
		r.Retryable = true
		return r, nil
	}
}

// gatewayStatus trusts the authenticated callback payload; other triggers ask
// the gateway. A gateway error leaves the order untouched.
func (uc *reconcileUC) gatewayStatus(ctx context.Context, req ReconcileRequest) (*model.GatewayStatus, ReconcileResult, error) {
	if req.Trigger == TriggerCallback {
		return req.Callback, ReconcileResult{}, nil
	}
	st, err := uc.gateway.GetStatus(ctx, req.OrderID)
	switch {
	case err == nil:
		return st, ReconcileResult{}, nil
	case errors.Is(err, domain.ErrGatewayRejected):
		return nil, ReconcileResult{Reason: ReasonGatewayRejected}, err
	default:
		return nil, ReconcileResult{Retryable: true, Reason: ReasonGatewayUnavailable}, err
	}
}

// complete runs the grant transaction: order -> COMPLETED, entitlement,
// payment record and outbox event commit together or not at all. st is nil
// when resuming an order that is already COMPLETED. create inserts order
// first (ManualFix backfill).
func (uc *reconcileUC) complete(ctx context.Context, log *zerolog.Logger, order *model.Order, st *model.GatewayStatus, create bool) (ReconcileResult, error) {
	validity := uc.validityFor(ctx, order.ToolID)
	var res ReconcileResult

	err := uc.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if create {
			if err := uc.orders.Create(ctx, tx, order); err != nil && !errors.Is(err, domain.ErrDuplicateOrder) {
				return err
			}
		}
		cur, err := uc.orders.FindByOrderID(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if st != nil && !cur.Status.IsTerminal() {
			f := model.OrderFields{}
			if st.GatewayTransactionID != "" {
				gw := st.GatewayTransactionID
				f.GatewayTransactionID = &gw
			}
			if cur.Status == model.OrderStatusCreated {
				// The gateway settled before the checkout step recorded INITIATED.
				if cur, err = uc.orders.Transition(ctx, tx, cur.ID, model.OrderStatusInitiated, f); err != nil {
					return err
				}
			}
			if cur, err = uc.orders.Transition(ctx, tx, cur.ID, model.OrderStatusCompleted, f); err != nil {
				return err
			}
			metrics.IncPayment("completed")
			metrics.AddPaymentRevenue("INR", cur.Amount)
		}

		if cur.Status == model.OrderStatusFailed {
			res = resultFor(cur, ReasonFailed)
			return nil
		}
		if cur.Status != model.OrderStatusCompleted {
			return fmt.Errorf("%w: order %s is %s", domain.ErrGrantInconsistent, cur.ID, cur.Status)
		}

		ent, granted, err := uc.grantOnce(ctx, tx, cur, validity)
		if err != nil {
			return err
		}
		res = resultFor(cur, ReasonCompleted)
		res.Granted = granted
		res.Entitlement = ent
		return nil
	})
	if err != nil {
		// Nothing was committed; the order keeps its previous status.
		r := ReconcileResult{Status: order.Status, Retryable: true, Reason: ReasonInternal}
		if create {
			r.Status = ""
		}
		return r, err
	}
	if res.Granted {
		log.Info().
			Str("user_id", order.UserID).
			Str("tool_id", order.ToolID).
			Time("expires_at", res.Entitlement.ExpiresAt).
			Msg("entitlement granted")
	}
	return res, nil
}

// grantOnce writes the entitlement, the audit record and the outbox event
// unless the payment record for the order already exists, which marks a grant
// committed by an earlier run. Replays never extend or revive access.
func (uc *reconcileUC) grantOnce(ctx context.Context, tx repository.Tx, o *model.Order, validity time.Duration) (*model.Entitlement, bool, error) {
	if _, err := uc.records.FindByOrderID(ctx, tx, o.ID); err == nil {
		metrics.IncGrant("unchanged")
		ent, ferr := uc.entitlements.FindBySourceOrder(ctx, tx, o.ID)
		if ferr != nil && !errors.Is(ferr, domain.ErrNotFound) {
			return nil, false, ferr
		}
		return ent, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	now := uc.now()
	ent, granted, err := uc.entitlements.Grant(ctx, tx, o.UserID, o.ToolID, o.ID, validity, now)
	if err != nil {
		return nil, false, err
	}
	gw := ""
	if o.GatewayTransactionID != nil {
		gw = *o.GatewayTransactionID
	}
	if _, err := uc.records.Append(ctx, tx, model.NewPaymentRecord(o, gw, now)); err != nil {
		return nil, false, err
	}
	exp := ent.ExpiresAt
	if err := uc.enqueue(ctx, tx, o, model.EventEntitlementGranted, gw, &exp, now); err != nil {
		return nil, false, err
	}
	if granted {
		metrics.IncGrant("granted")
	} else {
		metrics.IncGrant("unchanged")
	}
	return ent, granted, nil
}

func (uc *reconcileUC) fail(ctx context.Context, log *zerolog.Logger, order *model.Order, st *model.GatewayStatus, reason string) (ReconcileResult, error) {
	var (
		res       ReconcileResult
		alertText string // sent after commit, never while holding the row lock
	)
	err := uc.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := uc.orders.FindByOrderID(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if cur.Status == model.OrderStatusCompleted {
			// Terminal states are final, even against a later gateway report.
			alertText = fmt.Sprintf("gateway reports %s for completed order %s", st.State, cur.ID)
			res = resultFor(cur, ReasonCompleted)
			return nil
		}
		f := model.OrderFields{}
		if st.GatewayTransactionID != "" {
			gw := st.GatewayTransactionID
			f.GatewayTransactionID = &gw
		}
		if cur.Status == model.OrderStatusCreated {
			if cur, err = uc.orders.Transition(ctx, tx, cur.ID, model.OrderStatusInitiated, f); err != nil {
				return err
			}
		}
		if cur.Status == model.OrderStatusInitiated {
			if cur, err = uc.orders.Transition(ctx, tx, cur.ID, model.OrderStatusFailed, f); err != nil {
				return err
			}
			metrics.IncPayment("failed")
		}
		if err := uc.enqueue(ctx, tx, cur, model.EventPaymentFailed, st.GatewayTransactionID, nil, uc.now()); err != nil {
			return err
		}
		res = resultFor(cur, reason)
		return nil
	})
	if err != nil {
		return ReconcileResult{Status: order.Status, Retryable: true, Reason: ReasonInternal}, err
	}
	if alertText != "" {
		uc.alert(ctx, log, alertText)
	}
	if res.Status == model.OrderStatusFailed {
		log.Info().Str("reason", reason).Msg("order failed")
	}
	return res, nil
}

// recoverMissing handles a ManualFix for an order the store never saw. Only a
// gateway COMPLETED backfills the order; anything else leaves no trace.
func (uc *reconcileUC) recoverMissing(ctx context.Context, log *zerolog.Logger, req ReconcileRequest) (ReconcileResult, error) {
	userID, toolID := req.UserID, req.ToolID
	if userID == "" || toolID == "" {
		var ok bool
		if userID, toolID, ok = model.ParseOrderID(req.OrderID); !ok {
			return ReconcileResult{Reason: ReasonOrderNotFound}, domain.ErrOrderNotFound
		}
	}
	st, res, err := uc.gatewayStatus(ctx, req)
	if err != nil {
		return res, err
	}
	if st.State != model.GatewayStateCompleted {
		return ReconcileResult{Reason: ReasonOrderNotFound}, domain.ErrOrderNotFound
	}
	amount := st.Amount
	if amount <= 0 {
		if t, terr := uc.tools.FindByID(ctx, repository.NoTX, toolID); terr == nil {
			amount = t.PriceMinor
		}
	}
	if amount <= 0 {
		return ReconcileResult{Reason: ReasonOrderNotFound}, domain.ErrOrderNotFound
	}

	now := uc.now()
	order := &model.Order{
		ID:        req.OrderID,
		UserID:    userID,
		ToolID:    toolID,
		Amount:    amount,
		Status:    model.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err = uc.complete(ctx, log, order, st, true)
	if err == nil && res.Success {
		uc.alert(ctx, log, fmt.Sprintf("manual fix backfilled missing order %s for user %s tool %s", order.ID, userID, toolID))
	}
	return res, err
}

func (uc *reconcileUC) enqueue(ctx context.Context, tx repository.Tx, o *model.Order, kind model.EventKind, gw string, exp *time.Time, at time.Time) error {
	payload, err := json.Marshal(model.EventPayload{
		Kind:                 kind,
		OrderID:              o.ID,
		UserID:               o.UserID,
		ToolID:               o.ToolID,
		Amount:               o.Amount,
		GatewayTransactionID: gw,
		ExpiresAt:            exp,
		OccurredAt:           at,
	})
	if err != nil {
		return err
	}
	_, err = uc.outbox.Enqueue(ctx, tx, model.NewOutboxEvent(o.ID, kind, payload))
	return err
}

func (uc *reconcileUC) validityFor(ctx context.Context, toolID string) time.Duration {
	if uc.tools == nil {
		return uc.validity
	}
	t, err := uc.tools.FindByID(ctx, repository.NoTX, toolID)
	if err != nil {
		return uc.validity
	}
	return t.Validity(uc.validity)
}

func (uc *reconcileUC) alert(ctx context.Context, log *zerolog.Logger, text string) {
	log.Warn().Str("alert", text).Msg("security alert")
	if uc.alerts == nil {
		return
	}
	if err := uc.alerts.Alert(ctx, text); err != nil {
		log.Error().Err(err).Msg("deliver alert")
	}
}

func resultFor(o *model.Order, reason string) ReconcileResult {
	r := ReconcileResult{
		OrderID: o.ID,
		Status:  o.Status,
		Reason:  reason,
		Amount:  o.Amount,
		Success: o.Status == model.OrderStatusCompleted,
	}
	if o.GatewayTransactionID != nil {
		r.GatewayTransactionID = *o.GatewayTransactionID
	}
	return r
}
