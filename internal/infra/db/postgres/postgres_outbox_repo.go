package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

const outboxCols = `id, order_id, kind, payload, attempts, last_error, delivered_sinks, created_at, processed_at`

func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, e *model.OutboxEvent) (bool, error) {
	const q = `
INSERT INTO outbox_events (` + outboxCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (order_id, kind) DO NOTHING;`
	sinks := e.DeliveredTo
	if sinks == nil {
		sinks = []string{}
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, e.ID, e.OrderID, string(e.Kind), e.Payload, e.Attempts, e.LastError, sinks, e.CreatedAt, e.ProcessedAt)
	if err != nil {
		return false, mapErr("outbox_enqueue", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *outboxRepo) ClaimBatch(ctx context.Context, tx repository.Tx, limit, maxAttempts int) ([]*model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + outboxCols + ` FROM outbox_events WHERE processed_at IS NULL AND attempts < $2 ORDER BY created_at LIMIT $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE SKIP LOCKED"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", limit, maxAttempts)
	if err != nil {
		return nil, mapErr("outbox_claim", err)
	}
	defer rows.Close()

	var out []*model.OutboxEvent
	for rows.Next() {
		e := &model.OutboxEvent{}
		var kind string
		if err := rows.Scan(&e.ID, &e.OrderID, &kind, &e.Payload, &e.Attempts, &e.LastError, &e.DeliveredTo, &e.CreatedAt, &e.ProcessedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		e.Kind = model.EventKind(kind)
		out = append(out, e)
	}
	return out, mapErr("outbox_claim", rows.Err())
}

func (r *outboxRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id, sink string) error {
	const q = `
UPDATE outbox_events
SET delivered_sinks = array_append(delivered_sinks, $2)
WHERE id=$1 AND NOT ($2 = ANY(delivered_sinks));`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, sink)
	if err != nil {
		return mapErr("outbox_mark_delivered", err)
	}
	if cmd.RowsAffected() == 0 {
		row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM outbox_events WHERE id=$1);`, id)
		if err != nil {
			return mapErr("outbox_mark_delivered", err)
		}
		var exists bool
		if err := row.Scan(&exists); err != nil {
			return mapErr("outbox_mark_delivered", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE outbox_events SET processed_at=$2 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, time.Now())
	if err != nil {
		return mapErr("outbox_mark_processed", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string) error {
	const q = `UPDATE outbox_events SET attempts=attempts+1, last_error=$2 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return mapErr("outbox_mark_failed", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
