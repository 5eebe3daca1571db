package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Reason: "is malformed"}
	}
	return nil
}

func validateDate(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return &ValidationError{Field: field, Reason: "must be formatted as " + dateLayout}
	}
	return nil
}

func validateClockTime(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if _, err := time.Parse(timeLayout, value); err != nil {
		return &ValidationError{Field: field, Reason: "must be formatted as " + timeLayout}
	}
	return nil
}

// updateBuilder accumulates SET clauses for a partial update.
type updateBuilder struct {
	columns []string
	args    []any
}

func (b *updateBuilder) set(column string, value any) {
	b.columns = append(b.columns, column+" = ?")
	b.args = append(b.args, value)
}

func (b *updateBuilder) empty() bool {
	return len(b.columns) == 0
}

func (b *updateBuilder) apply(ctx context.Context, h Handle, table string, id int64, updatedAt string) (int64, error) {
	if updatedAt != "" {
		b.set("updated_at", updatedAt)
	}
	stmt := `UPDATE ` + table + ` SET ` + strings.Join(b.columns, ", ") + ` WHERE id = ?`
	args := append(b.args, id)
	res, err := Execute(ctx, h, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return res.RowsAffected, nil
}

// rowExists reports whether a row with the given id exists in table.
func rowExists(ctx context.Context, h Handle, table string, id int64) (bool, error) {
	var one int
	err := QueryOne(ctx, h, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, &StorageError{Op: "query " + table, Err: err}
	}
	return true, nil
}

// deleteByID removes one row. With foreign keys enforced, deleting a parent
// that still has children fails in the substrate; fkField names the referencing
// column for the translated constraint error.
func deleteByID(ctx context.Context, h Handle, table, fkField string, id int64) (int64, error) {
	res, err := Execute(ctx, h, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		if cerr := translateConstraint(err, fkField); cerr != nil {
			return 0, cerr
		}
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return res.RowsAffected, nil
}
