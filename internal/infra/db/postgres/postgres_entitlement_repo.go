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

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct{ pool *pgxpool.Pool }

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

const entitlementCols = `user_id, tool_id, active, granted_at, expires_at, source_order_id, updated_at`

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	e := &model.Entitlement{}
	if err := row.Scan(&e.UserID, &e.ToolID, &e.Active, &e.GrantedAt, &e.ExpiresAt, &e.SourceOrderID, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

// Grant upserts in one statement. The conflict branch is skipped when the row
// already is an active, unexpired grant from the same order, in which case
// nothing is returned and the current row is read back with granted=false.
func (r *entitlementRepo) Grant(ctx context.Context, tx repository.Tx, userID, toolID, orderID string, validity time.Duration, now time.Time) (*model.Entitlement, bool, error) {
	fresh, err := model.NewEntitlement(userID, toolID, orderID, now, validity)
	if err != nil {
		return nil, false, err
	}
	const q = `
INSERT INTO entitlements (` + entitlementCols + `)
VALUES ($1,$2,TRUE,$3,$4,$5,$3)
ON CONFLICT (user_id, tool_id) DO UPDATE SET
  active = TRUE,
  granted_at = EXCLUDED.granted_at,
  expires_at = EXCLUDED.expires_at,
  source_order_id = EXCLUDED.source_order_id,
  updated_at = EXCLUDED.updated_at
WHERE NOT (entitlements.active
       AND entitlements.source_order_id = EXCLUDED.source_order_id
       AND entitlements.expires_at > EXCLUDED.granted_at)
RETURNING ` + entitlementCols + `;`
	row, err := pickRow(ctx, r.pool, tx, q, fresh.UserID, fresh.ToolID, fresh.GrantedAt, fresh.ExpiresAt, fresh.SourceOrderID)
	if err != nil {
		return nil, false, err
	}
	e, err := scanEntitlement(row)
	switch {
	case err == nil:
		return e, true, nil
	case errors.Is(err, domain.ErrNotFound):
		cur, ferr := r.Find(ctx, tx, userID, toolID)
		if ferr != nil {
			return nil, false, ferr
		}
		return cur, false, nil
	default:
		return nil, false, mapErr("entitlement_grant", err)
	}
}

func (r *entitlementRepo) Find(ctx context.Context, tx repository.Tx, userID, toolID string) (*model.Entitlement, error) {
	const q = `SELECT ` + entitlementCols + ` FROM entitlements WHERE user_id=$1 AND tool_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, toolID)
	if err != nil {
		return nil, err
	}
	return scanEntitlement(row)
}

func (r *entitlementRepo) FindBySourceOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Entitlement, error) {
	const q = `SELECT ` + entitlementCols + ` FROM entitlements WHERE source_order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanEntitlement(row)
}

func (r *entitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Entitlement, error) {
	const q = `SELECT ` + entitlementCols + ` FROM entitlements WHERE user_id=$1 ORDER BY tool_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapErr("entitlement_list", err)
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapErr("entitlement_list", rows.Err())
}

func (r *entitlementRepo) Revoke(ctx context.Context, tx repository.Tx, userID, toolID string) error {
	const q = `UPDATE entitlements SET active=FALSE, updated_at=NOW() WHERE user_id=$1 AND tool_id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, toolID)
	if err != nil {
		return mapErr("entitlement_revoke", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *entitlementRepo) ImportLegacy(ctx context.Context, tx repository.Tx, g model.LegacyGrant) (bool, error) {
	const q = `
INSERT INTO entitlements (` + entitlementCols + `)
VALUES ($1,$2,TRUE,$3,$4,$5,NOW())
ON CONFLICT (user_id, tool_id) DO UPDATE SET
  active = TRUE,
  granted_at = EXCLUDED.granted_at,
  expires_at = EXCLUDED.expires_at,
  source_order_id = EXCLUDED.source_order_id,
  updated_at = NOW()
WHERE entitlements.expires_at < EXCLUDED.expires_at;`
	cmd, err := execSQL(ctx, r.pool, tx, q, g.UserID, g.ToolID, g.GrantedAt, g.ExpiresAt, g.SourceRef)
	if err != nil {
		return false, mapErr("entitlement_import", err)
	}
	return cmd.RowsAffected() == 1, nil
}
