//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
	"rankblaze-entitlements/internal/infra/security"
)

func newOrder(t *testing.T, ctx context.Context, userID string) *model.Order {
	t.Helper()
	o, err := model.NewOrder(userID, "toolA", 349)
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	if err := NewOrderRepo(testPool).Create(ctx, nil, o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrderRepo_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepo(testPool)

	t.Run("create, duplicate and find", func(t *testing.T) {
		cleanup(t)
		o := newOrder(t, ctx, "u1")

		if err := repo.Create(ctx, nil, o); !errors.Is(err, domain.ErrDuplicateOrder) {
			t.Errorf("want ErrDuplicateOrder, got %v", err)
		}
		got, err := repo.FindByOrderID(ctx, nil, o.ID)
		if err != nil || got.Status != model.OrderStatusCreated || got.Amount != 349 {
			t.Fatalf("find: %+v, %v", got, err)
		}
		if _, err := repo.FindByOrderID(ctx, nil, "ord_x_y_z"); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("want ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("transitions are forward only", func(t *testing.T) {
		cleanup(t)
		o := newOrder(t, ctx, "u1")
		txn := "T-1"

		if _, err := repo.Transition(ctx, nil, o.ID, model.OrderStatusInitiated, model.OrderFields{}); err != nil {
			t.Fatalf("to INITIATED: %v", err)
		}
		done, err := repo.Transition(ctx, nil, o.ID, model.OrderStatusCompleted, model.OrderFields{GatewayTransactionID: &txn})
		if err != nil || done.GatewayTransactionID == nil || *done.GatewayTransactionID != txn {
			t.Fatalf("to COMPLETED: %+v, %v", done, err)
		}
		if _, err := repo.Transition(ctx, nil, o.ID, model.OrderStatusFailed, model.OrderFields{}); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("COMPLETED -> FAILED: want ErrInvalidTransition, got %v", err)
		}
		if _, err := repo.Transition(ctx, nil, "ord_u9_toolA_missing", model.OrderStatusFailed, model.OrderFields{}); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("unknown order: want ErrOrderNotFound, got %v", err)
		}
		byGW, err := repo.FindByGatewayID(ctx, nil, txn)
		if err != nil || byGW.ID != o.ID {
			t.Errorf("find by gateway id: %+v, %v", byGW, err)
		}
	})

	t.Run("stale window excludes terminal orders", func(t *testing.T) {
		cleanup(t)
		open := newOrder(t, ctx, "u1")
		closed := newOrder(t, ctx, "u2")
		_, _ = repo.Transition(ctx, nil, closed.ID, model.OrderStatusFailed, model.OrderFields{})

		got, err := repo.ListStaleNonTerminal(ctx, nil, time.Now().Add(-time.Hour), time.Now().Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != open.ID {
			t.Errorf("unexpected stale orders: %+v", got)
		}
	})
}

func TestEntitlementRepo_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewEntitlementRepo(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("grant is idempotent per order and extends on a new order", func(t *testing.T) {
		cleanup(t)

		first, granted, err := repo.Grant(ctx, nil, "u1", "toolA", "ord_u1_toolA_1", model.DefaultValidity, now)
		if err != nil || !granted {
			t.Fatalf("first grant: %v granted=%v", err, granted)
		}
		again, granted, err := repo.Grant(ctx, nil, "u1", "toolA", "ord_u1_toolA_1", model.DefaultValidity, now.Add(time.Hour))
		if err != nil || granted || !again.ExpiresAt.Equal(first.ExpiresAt) {
			t.Fatalf("replay: %+v granted=%v err=%v", again, granted, err)
		}
		next, granted, err := repo.Grant(ctx, nil, "u1", "toolA", "ord_u1_toolA_2", model.DefaultValidity, now.Add(time.Hour))
		if err != nil || !granted || next.SourceOrderID != "ord_u1_toolA_2" {
			t.Fatalf("repurchase: %+v granted=%v err=%v", next, granted, err)
		}
	})

	t.Run("revoke and list", func(t *testing.T) {
		cleanup(t)
		_, _, _ = repo.Grant(ctx, nil, "u1", "toolA", "ord_u1_toolA_1", model.DefaultValidity, now)
		_, _, _ = repo.Grant(ctx, nil, "u1", "toolB", "ord_u1_toolB_1", model.DefaultValidity, now)

		if err := repo.Revoke(ctx, nil, "u1", "toolA"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if err := repo.Revoke(ctx, nil, "u1", "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("want ErrNotFound, got %v", err)
		}
		list, err := repo.ListByUser(ctx, nil, "u1")
		if err != nil || len(list) != 2 || list[0].Active || !list[1].Active {
			t.Errorf("unexpected list: %+v, %v", list, err)
		}
		src, err := repo.FindBySourceOrder(ctx, nil, "ord_u1_toolB_1")
		if err != nil || src.ToolID != "toolB" {
			t.Errorf("find by source: %+v, %v", src, err)
		}
	})

	t.Run("legacy import never shortens access", func(t *testing.T) {
		cleanup(t)
		_, _, _ = repo.Grant(ctx, nil, "u1", "toolA", "ord_u1_toolA_1", model.DefaultValidity, now)

		shorter := model.LegacyGrant{UserID: "u1", ToolID: "toolA", GrantedAt: now.Add(-time.Hour), ExpiresAt: now.Add(24 * time.Hour), SourceRef: "legacy:document:u1_toolA"}
		wrote, err := repo.ImportLegacy(ctx, nil, shorter)
		if err != nil || wrote {
			t.Errorf("shorter legacy grant applied: wrote=%v err=%v", wrote, err)
		}
		fresh := model.LegacyGrant{UserID: "u2", ToolID: "toolA", GrantedAt: now, ExpiresAt: now.Add(24 * time.Hour), SourceRef: "legacy:tree:-N1"}
		if wrote, err := repo.ImportLegacy(ctx, nil, fresh); err != nil || !wrote {
			t.Errorf("fresh legacy grant: wrote=%v err=%v", wrote, err)
		}
	})
}

func TestPaymentRecordRepo_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRecordRepo(testPool)
	cleanup(t)
	o := newOrder(t, ctx, "u1")
	now := time.Now().UTC()

	inserted, err := repo.Append(ctx, nil, model.NewPaymentRecord(o, "T-1", now))
	if err != nil || !inserted {
		t.Fatalf("append: %v inserted=%v", err, inserted)
	}
	inserted, err = repo.Append(ctx, nil, model.NewPaymentRecord(o, "T-1", now))
	if err != nil || inserted {
		t.Errorf("second append for one order must be a no-op: %v inserted=%v", err, inserted)
	}
	if got, err := repo.FindByOrderID(ctx, nil, o.ID); err != nil || got.Amount != 349 {
		t.Errorf("find: %+v, %v", got, err)
	}
	sum, err := repo.SumSince(ctx, nil, now.Add(-time.Minute))
	if err != nil || sum != 349 {
		t.Errorf("sum: %d, %v", sum, err)
	}
}

func TestOutboxRepo_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepo(testPool)
	tm := NewTxManager(testPool)
	cleanup(t)

	ev := model.NewOutboxEvent("ord_u1_toolA_1", model.EventEntitlementGranted, []byte(`{}`))
	if ok, err := repo.Enqueue(ctx, nil, ev); err != nil || !ok {
		t.Fatalf("enqueue: %v ok=%v", err, ok)
	}
	dup := model.NewOutboxEvent("ord_u1_toolA_1", model.EventEntitlementGranted, []byte(`{}`))
	if ok, _ := repo.Enqueue(ctx, nil, dup); ok {
		t.Errorf("duplicate (order, kind) enqueued")
	}

	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		batch, err := repo.ClaimBatch(ctx, tx, 10, 3)
		if err != nil || len(batch) != 1 {
			t.Fatalf("claim: %d, %v", len(batch), err)
		}
		if err := repo.MarkDelivered(ctx, tx, batch[0].ID, "log"); err != nil {
			return err
		}
		if err := repo.MarkDelivered(ctx, tx, batch[0].ID, "log"); err != nil {
			return err
		}
		return repo.MarkFailed(ctx, tx, batch[0].ID, "sink down")
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	batch, _ := repo.ClaimBatch(ctx, nil, 10, 3)
	if len(batch) != 1 || batch[0].Attempts != 1 || batch[0].LastError == nil {
		t.Fatalf("unexpected retry state: %+v", batch)
	}
	if len(batch[0].DeliveredTo) != 1 || !batch[0].DeliveredBy("log") {
		t.Errorf("unexpected delivered sinks: %v", batch[0].DeliveredTo)
	}
	if err := repo.MarkDelivered(ctx, nil, "missing", "log"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want not found, got %v", err)
	}
	if err := repo.MarkProcessed(ctx, nil, batch[0].ID); err != nil {
		t.Fatalf("processed: %v", err)
	}
	if rest, _ := repo.ClaimBatch(ctx, nil, 10, 3); len(rest) != 0 {
		t.Errorf("processed event claimed again")
	}
}

func TestToolRepo_Integration(t *testing.T) {
	ctx := context.Background()
	box, _ := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	repo := NewToolRepo(testPool, box)
	cleanup(t)

	tool, _ := model.NewTool("toolA", "Tool A", 349, 30, model.Credentials{ID: "login", Password: "pw"})
	if err := repo.Save(ctx, nil, tool); err != nil {
		t.Fatalf("save: %v", err)
	}

	var raw string
	if err := testPool.QueryRow(ctx, `SELECT token_payload FROM tools WHERE id='toolA'`).Scan(&raw); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if raw == "" || raw == `{"id":"login","password":"pw"}` {
		t.Errorf("token payload stored in the clear: %q", raw)
	}

	got, err := repo.FindByID(ctx, nil, "toolA")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if c, ok := got.Payload.(model.Credentials); !ok || c.Password != "pw" {
		t.Errorf("unexpected payload: %#v", got.Payload)
	}
	if _, err := repo.FindByID(ctx, nil, "nope"); !errors.Is(err, domain.ErrToolNotFound) {
		t.Errorf("want ErrToolNotFound, got %v", err)
	}
}
