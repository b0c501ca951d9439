// Package storage provides the transaction boundary every saga step runs in.
// A handler gets exactly one transaction per event; the open transaction
// travels in the context so repositories and the event publisher share it.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxOptions configure transaction boundaries.
type TxOptions struct {
	Serializable bool
	ReadOnly     bool
}

// Runner starts a transaction scope and runs fn inside it.
type Runner interface {
	RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error
}

// Querier is the subset of pgx used by repositories; satisfied by both
// pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// ContextWithTx stores an open transaction in the context.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext extracts the transaction placed by RunInTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}
