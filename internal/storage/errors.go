package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

// StorageError wraps an opaque substrate failure. The raw driver message is
// preserved; interpretation happens at the repository boundary.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError reports malformed or missing input, detected before any
// statement is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
)

// ConstraintError is a uniqueness or foreign-key violation raised by the
// substrate and re-wrapped with the offending field.
type ConstraintError struct {
	Kind  ConstraintKind
	Field string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation: %s: %s", e.Kind, e.Field)
}

// ConflictError is a domain-level conflict: time-slot collision or
// duplicate review.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// StateTransitionError reports an illegal booking status change.
type StateTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s", e.From, e.To)
}

// TransactionError wraps the failure that triggered a rollback.
type TransactionError struct {
	Cause error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Cause)
}

func (e *TransactionError) Unwrap() error { return e.Cause }

// translateConstraint maps a SQLite constraint failure to a ConstraintError.
// SQLite names the column on unique violations ("UNIQUE constraint failed:
// users.email") but not on foreign-key ones, so callers supply fkField for
// that case. Returns nil when err is not a constraint failure.
func translateConstraint(err error, fkField string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	const uniquePrefix = "UNIQUE constraint failed: "
	if idx := strings.Index(msg, uniquePrefix); idx >= 0 {
		rest := msg[idx+len(uniquePrefix):]
		if end := strings.IndexAny(rest, ", ("); end >= 0 {
			rest = rest[:end]
		}
		field := rest
		if dot := strings.LastIndex(rest, "."); dot >= 0 {
			field = rest[dot+1:]
		}
		return &ConstraintError{Kind: ConstraintUnique, Field: field}
	}

	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return &ConstraintError{Kind: ConstraintForeignKey, Field: fkField}
	}
	return nil
}
