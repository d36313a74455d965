// Package memory holds in-process implementations of the repository ports.
// They back dev mode (no Postgres) and unit tests. A single mutex guards all
// tables, so WithTx serializes writers the way row locks do in Postgres.
package memory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"

	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*Store)(nil)

type memTx struct{}

type Store struct {
	mu sync.Mutex

	orders       map[string]*model.Order
	entitlements map[string]*model.Entitlement // key: userID + "\x00" + toolID
	records      map[string]*model.PaymentRecord
	tools        map[string]*model.Tool
	outbox       []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		orders:       map[string]*model.Order{},
		entitlements: map[string]*model.Entitlement{},
		records:      map[string]*model.PaymentRecord{},
		tools:        map[string]*model.Tool{},
	}
}

// WithTx runs fn holding the store lock. On error every table is restored to
// its state before fn ran.
func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, memTx{}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// lock acquires the store mutex unless tx shows the caller already holds it.
func (s *Store) lock(tx repository.Tx) func() {
	if _, ok := tx.(memTx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	orders       map[string]*model.Order
	entitlements map[string]*model.Entitlement
	records      map[string]*model.PaymentRecord
	tools        map[string]*model.Tool
	outbox       []*model.OutboxEvent
}

func (s *Store) snapshot() snapshot {
	sn := snapshot{
		orders:       make(map[string]*model.Order, len(s.orders)),
		entitlements: make(map[string]*model.Entitlement, len(s.entitlements)),
		records:      make(map[string]*model.PaymentRecord, len(s.records)),
		tools:        make(map[string]*model.Tool, len(s.tools)),
		outbox:       make([]*model.OutboxEvent, 0, len(s.outbox)),
	}
	for k, v := range s.orders {
		cp := *v
		sn.orders[k] = &cp
	}
	for k, v := range s.entitlements {
		cp := *v
		sn.entitlements[k] = &cp
	}
	for k, v := range s.records {
		cp := *v
		sn.records[k] = &cp
	}
	for k, v := range s.tools {
		cp := *v
		sn.tools[k] = &cp
	}
	for _, v := range s.outbox {
		cp := *v
		cp.DeliveredTo = append([]string(nil), v.DeliveredTo...)
		sn.outbox = append(sn.outbox, &cp)
	}
	return sn
}

func (s *Store) restore(sn snapshot) {
	s.orders = sn.orders
	s.entitlements = sn.entitlements
	s.records = sn.records
	s.tools = sn.tools
	s.outbox = sn.outbox
}

// Repositories

func (s *Store) Orders() *OrderRepo                 { return &OrderRepo{s: s} }
func (s *Store) Entitlements() *EntitlementRepo     { return &EntitlementRepo{s: s} }
func (s *Store) PaymentRecords() *PaymentRecordRepo { return &PaymentRecordRepo{s: s} }
func (s *Store) Tools() *ToolRepo                   { return &ToolRepo{s: s} }
func (s *Store) Outbox() *OutboxRepo                { return &OutboxRepo{s: s} }

func entKey(userID, toolID string) string { return userID + "\x00" + toolID }
