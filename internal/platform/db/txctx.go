package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txContextKey struct{}

// ContextWithTx stores an open transaction in the context so repositories
// participating in the same unit of work share it.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts the ambient transaction, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// Runner opens one transaction per use case and exposes it to every
// repository through the context. A nested call joins the outer transaction
// instead of opening a second one.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner constructs a Runner over the pool.
func NewRunner(pool *pgxpool.Pool) Runner {
	return Runner{pool: pool}
}

// WithTx runs fn inside a transaction carried by the context.
func (r Runner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}
