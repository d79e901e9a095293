package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository calls.
// Concrete repositories type-assert it to the driver transaction.
type Tx any

// TransactionManager begins a transaction, invokes fn, and commits or
// rolls back depending on the returned error.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
