package repository

import (
	"context"

	"rankblaze-entitlements/internal/domain/model"
)

// OutboxRepository stores side effects written together with a grant.
type OutboxRepository interface {
	// Enqueue inserts e; a duplicate (OrderID, Kind) is ignored (enqueued=false).
	Enqueue(ctx context.Context, tx Tx, e *model.OutboxEvent) (enqueued bool, err error)
	// ClaimBatch returns unprocessed events with attempts < maxAttempts. Inside a
	// tx the rows stay locked (SKIP LOCKED) until the tx ends.
	ClaimBatch(ctx context.Context, tx Tx, limit, maxAttempts int) ([]*model.OutboxEvent, error)
	// MarkDelivered records that sink accepted event id. Retries skip it.
	MarkDelivered(ctx context.Context, tx Tx, id, sink string) error
	MarkProcessed(ctx context.Context, tx Tx, id string) error
	MarkFailed(ctx context.Context, tx Tx, id string, reason string) error
}
