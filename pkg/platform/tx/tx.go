// Package tx carries the active database transaction through a context so
// stores can join it without changing their signatures.
package tx

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

type lockKey struct{}

// WithTx returns a context that carries tx.
func WithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From returns the transaction carried by ctx, if any.
func From(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// InMemory serialises units of work for the in-memory stores. It plays the
// role of a database transaction: a single process-wide lock held for the
// duration of fn. Nested calls on a context already inside the lock run
// inline.
type InMemory struct {
	mu sync.Mutex
}

// NewInMemory creates an in-memory transaction runner.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// RunInTx runs fn while holding the lock.
func (m *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(lockKey{}).(*InMemory); held == m {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, lockKey{}, m))
}

// Detach strips any transaction or lock marker from ctx. Work started on the
// returned context never joins the caller's unit of work.
func Detach(ctx context.Context) context.Context {
	ctx = context.WithoutCancel(ctx)
	ctx = context.WithValue(ctx, txKey{}, (*sqlx.Tx)(nil))
	return context.WithValue(ctx, lockKey{}, (*InMemory)(nil))
}
