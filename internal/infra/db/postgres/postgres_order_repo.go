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

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderCols = `id, user_id, tool_id, amount, status, gateway_transaction_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.ToolID, &o.Amount, &status, &o.GatewayTransactionID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	o.Status = model.OrderStatus(status)
	return o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, o.ToolID, o.Amount, string(o.Status), o.GatewayTransactionID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrder
		}
		return mapErr("order_create", err)
	}
	return nil
}

func (r *orderRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Order, error) {
	q := withLock(`SELECT `+orderCols+` FROM orders WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewayTxnID string) (*model.Order, error) {
	q := withLock(`SELECT `+orderCols+` FROM orders WHERE gateway_transaction_id=$1 LIMIT 1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, gatewayTxnID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

// Transition is a single conditional UPDATE; the WHERE clause on the current
// status makes it a compare-and-set even without an explicit row lock.
func (r *orderRepo) Transition(ctx context.Context, tx repository.Tx, orderID string, next model.OrderStatus, f model.OrderFields) (*model.Order, error) {
	from := allowedFrom(next)
	if len(from) == 0 {
		return nil, domain.ErrInvalidTransition
	}
	const q = `
UPDATE orders
   SET status = $2,
       gateway_transaction_id = COALESCE($3, gateway_transaction_id),
       updated_at = GREATEST(NOW(), updated_at)
 WHERE id = $1
   AND status = ANY($4)
RETURNING ` + orderCols + `;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID, string(next), f.GatewayTransactionID, from)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Either the id is unknown or the guard rejected the current status.
		if _, ferr := r.FindByOrderID(ctx, tx, orderID); ferr != nil {
			return nil, ferr
		}
		return nil, domain.ErrInvalidTransition
	}
	return o, err
}

func allowedFrom(next model.OrderStatus) []string {
	var out []string
	for _, s := range []model.OrderStatus{model.OrderStatusCreated, model.OrderStatusInitiated, model.OrderStatusCompleted, model.OrderStatusFailed} {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}

func (r *orderRepo) ListStaleNonTerminal(ctx context.Context, tx repository.Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderCols + ` FROM orders WHERE status IN ('CREATED','INITIATED') AND created_at >= $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, createdAfter, createdBefore, limit)
	if err != nil {
		return nil, mapErr("order_list_stale", err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("order_list_stale", err)
	}
	return out, nil
}
