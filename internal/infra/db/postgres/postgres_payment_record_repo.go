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

var _ repository.PaymentRecordRepository = (*paymentRecordRepo)(nil)

type paymentRecordRepo struct{ pool *pgxpool.Pool }

func NewPaymentRecordRepo(pool *pgxpool.Pool) *paymentRecordRepo {
	return &paymentRecordRepo{pool: pool}
}

const paymentRecordCols = `id, user_id, tool_id, order_id, gateway_transaction_id, amount, completed_at`

func scanPaymentRecord(row pgx.Row) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	if err := row.Scan(&p.ID, &p.UserID, &p.ToolID, &p.OrderID, &p.GatewayTransactionID, &p.Amount, &p.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// Append never updates: the unique order_id index turns a replay into a no-op.
func (r *paymentRecordRepo) Append(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) (bool, error) {
	const q = `
INSERT INTO payment_records (` + paymentRecordCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (order_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ToolID, p.OrderID, p.GatewayTransactionID, p.Amount, p.CompletedAt)
	if err != nil {
		return false, mapErr("payment_record_append", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRecordRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentRecordCols + ` FROM payment_records WHERE order_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(row)
}

func (r *paymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentRecordCols + ` FROM payment_records WHERE user_id=$1 ORDER BY completed_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapErr("payment_record_list", err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr("payment_record_list", rows.Err())
}

func (r *paymentRecordRepo) SumSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payment_records WHERE completed_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
