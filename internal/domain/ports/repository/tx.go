package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn within a storage transaction, passing the
// underlying handle as tx. Repositories that receive a non-nil tx lock the rows
// they read (SELECT ... FOR UPDATE for Postgres) and write through the same
// handle, which is what makes order transitions atomic.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres). Repositories
// MUST accept NoTX for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
