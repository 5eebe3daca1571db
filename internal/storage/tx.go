package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// RunInTransaction executes fn atomically: every statement issued through the
// handle passed to fn either commits as a unit or rolls back on the first
// failure, which is returned wrapped in *TransactionError.
//
// When h is already a *sql.Tx the caller's transaction is joined instead of
// opening a nested one; the innermost failure then rolls back the outer
// transaction as a whole.
func RunInTransaction(ctx context.Context, h Handle, fn func(Handle) error) error {
	if tx, ok := h.(*sql.Tx); ok {
		return fn(tx)
	}

	db, ok := h.(*sql.DB)
	if !ok {
		return &StorageError{Op: "begin transaction", Err: fmt.Errorf("unsupported handle type %T", h)}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin transaction", Err: err}
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return &TransactionError{Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &TransactionError{Cause: err}
	}
	return nil
}
