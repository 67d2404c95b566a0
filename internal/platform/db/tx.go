package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommitError marks a transaction whose commit failed. Unlike an error from
// inside the transaction the outcome is ambiguous: the server may have applied
// the commit even though the client saw a failure.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("platform/db: commit tx: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// WithTx executes fn within a transaction at the RepeatableRead isolation
// level. Errors returned by fn roll the transaction back and are returned
// as-is; a failed commit is wrapped in CommitError.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &CommitError{Err: err}
	}

	return nil
}
