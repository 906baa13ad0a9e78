package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTransactor implements Transactor on a pgx pool.
type PgTransactor struct {
	pool *pgxpool.Pool
}

// NewPgTransactor creates a transactor backed by pool.
func NewPgTransactor(pool *pgxpool.Pool) *PgTransactor {
	return &PgTransactor{pool: pool}
}

// InTx begins a transaction, runs fn and commits. Any error rolls back.
func (t *PgTransactor) InTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
