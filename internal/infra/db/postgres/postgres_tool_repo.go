package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rankblaze-entitlements/internal/domain"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.ToolRepository = (*toolRepo)(nil)

// SecretBox seals token material before it reaches a table or a cache.
// *security.EncryptionService satisfies it.
type SecretBox interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(b64 string) (string, error)
}

type toolRepo struct {
	pool *pgxpool.Pool
	box  SecretBox
}

func NewToolRepo(pool *pgxpool.Pool, box SecretBox) *toolRepo {
	return &toolRepo{pool: pool, box: box}
}

const toolCols = `id, name, price_minor, validity_days, active, token_kind, token_payload, updated_at`

// sealPayload returns the kind and the encrypted JSON of p.
func sealPayload(box SecretBox, p model.TokenPayload) (string, *string, error) {
	kind, raw, err := model.MarshalTokenPayload(p)
	if err != nil || raw == nil {
		return string(kind), nil, err
	}
	sealed, err := box.Encrypt(string(raw))
	if err != nil {
		return "", nil, fmt.Errorf("seal token payload: %w", err)
	}
	return string(kind), &sealed, nil
}

func openPayload(box SecretBox, kind string, sealed *string) (model.TokenPayload, error) {
	if sealed == nil || *sealed == "" {
		return nil, nil
	}
	raw, err := box.Decrypt(*sealed)
	if err != nil {
		return nil, fmt.Errorf("open token payload: %w", err)
	}
	return model.UnmarshalTokenPayload(model.TokenKind(kind), []byte(raw))
}

func (r *toolRepo) scan(row pgx.Row) (*model.Tool, error) {
	t := &model.Tool{}
	var kind string
	var sealed *string
	if err := row.Scan(&t.ID, &t.Name, &t.PriceMinor, &t.ValidityDays, &t.Active, &kind, &sealed, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrToolNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p, err := openPayload(r.box, kind, sealed)
	if err != nil {
		return nil, err
	}
	t.Payload = p
	return t, nil
}

func (r *toolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tool, error) {
	const q = `SELECT ` + toolCols + ` FROM tools WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scan(row)
}

func (r *toolRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tool, error) {
	const q = `SELECT ` + toolCols + ` FROM tools ORDER BY id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("tool_list", err)
	}
	defer rows.Close()

	var out []*model.Tool
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr("tool_list", rows.Err())
}

func (r *toolRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tool) error {
	kind, sealed, err := sealPayload(r.box, t.Payload)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tools (` + toolCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price_minor=$3, validity_days=$4, active=$5, token_kind=$6, token_payload=$7, updated_at=$8;`
	_, err = execSQL(ctx, r.pool, tx, q, t.ID, t.Name, t.PriceMinor, t.ValidityDays, t.Active, kind, sealed, t.UpdatedAt)
	return mapErr("tool_save", err)
}
