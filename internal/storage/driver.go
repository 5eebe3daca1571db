package storage

import (
	"context"
	"database/sql"
)

// Handle is the capability surface the repositories and the transaction
// executor need from the driver. Both *sql.DB and *sql.Tx satisfy it, so a
// repository operation runs identically inside or outside a transaction, and
// tests can substitute a fake.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecResult reports the outcome of a single mutating statement.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Execute runs one parameterized statement. Failures are wrapped as
// *StorageError with the raw driver message preserved; no retry is attempted.
func Execute(ctx context.Context, h Handle, stmt string, args ...any) (ExecResult, error) {
	res, err := h.ExecContext(ctx, stmt, args...)
	if err != nil {
		return ExecResult{}, &StorageError{Op: "execute", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ExecResult{}, &StorageError{Op: "execute: rows affected", Err: err}
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return ExecResult{}, &StorageError{Op: "execute: last insert id", Err: err}
	}
	return ExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}

// QueryOne runs a statement expected to return at most one row. Callers
// detect absence through sql.ErrNoRows at Scan time.
func QueryOne(ctx context.Context, h Handle, stmt string, args ...any) *sql.Row {
	return h.QueryRowContext(ctx, stmt, args...)
}

// QueryMany runs a statement returning zero or more rows. The caller owns
// the returned rows and must close them.
func QueryMany(ctx context.Context, h Handle, stmt string, args ...any) (*sql.Rows, error) {
	rows, err := h.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return rows, nil
}
