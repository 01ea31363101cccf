package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept NoTX to run on the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a database transaction and hands the
// transaction to fn as tx. A non-nil error from fn rolls back.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		if err := ledger.Insert(ctx, tx, p); err != nil {
//			return err
//		}
//		return subs.Save(ctx, tx, s)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
