package repository

import (
	"context"
	"time"

	"rankblaze-entitlements/internal/domain/model"
)

// PaymentRecordRepository is the append-only audit trail of completed orders.
type PaymentRecordRepository interface {
	// Append inserts r; a second record for the same order is ignored and
	// reported as inserted=false.
	Append(ctx context.Context, tx Tx, r *model.PaymentRecord) (inserted bool, err error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentRecord, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PaymentRecord, error)
	SumSince(ctx context.Context, tx Tx, since time.Time) (int64, error)
}
