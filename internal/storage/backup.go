package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// snapshotTables lists the entity tables in dependency order, parents first.
// Restore deletes in reverse and inserts forward. Migration bookkeeping is
// deliberately excluded so a restore never rewinds schema history.
var snapshotTables = []string{"users", "pets", "bookings", "medical_records", "reviews"}

// TableDump is one table's full contents with a stable column order.
type TableDump struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Snapshot is a point-in-time export of every entity table.
type Snapshot struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Tables    map[string]TableDump `json:"tables"`
}

// Backup reads every entity table inside one transaction, so the snapshot is
// a consistent view even if writers appear between table reads in a future
// multi-writer design.
func (s *Store) Backup(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Tables:    map[string]TableDump{},
	}

	err := RunInTransaction(ctx, s.db, func(h Handle) error {
		for _, table := range snapshotTables {
			dump, err := dumpTable(ctx, h, table)
			if err != nil {
				return err
			}
			snapshot.Tables[table] = dump
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Restore replaces the contents of every table the snapshot covers inside one
// transaction: children deleted first, parents inserted first, original row
// ids preserved. Any failure rolls back to the pre-restore state.
func (s *Store) Restore(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("restore snapshot: snapshot is nil")
	}

	return RunInTransaction(ctx, s.db, func(h Handle) error {
		for i := len(snapshotTables) - 1; i >= 0; i-- {
			table := snapshotTables[i]
			if _, ok := snapshot.Tables[table]; !ok {
				continue
			}
			if _, err := Execute(ctx, h, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("restore: clear %s: %w", table, err)
			}
		}

		for _, table := range snapshotTables {
			dump, ok := snapshot.Tables[table]
			if !ok {
				continue
			}
			if err := insertDump(ctx, h, table, dump); err != nil {
				return err
			}
		}
		return nil
	})
}

func dumpTable(ctx context.Context, h Handle, table string) (TableDump, error) {
	rows, err := QueryMany(ctx, h, `SELECT * FROM `+table+` ORDER BY id ASC`)
	if err != nil {
		return TableDump{}, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return TableDump{}, fmt.Errorf("dump %s: columns: %w", table, err)
	}

	dump := TableDump{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return TableDump{}, fmt.Errorf("dump %s: scan row: %w", table, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		dump.Rows = append(dump.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return TableDump{}, fmt.Errorf("dump %s: iterate: %w", table, err)
	}
	return dump, nil
}

func insertDump(ctx context.Context, h Handle, table string, dump TableDump) error {
	if len(dump.Columns) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(dump.Columns)), ", ")
	stmt := `INSERT INTO ` + table + `(` + strings.Join(dump.Columns, ", ") + `) VALUES(` + placeholders + `)`

	for _, row := range dump.Rows {
		if len(row) != len(dump.Columns) {
			return fmt.Errorf("restore: %s row has %d values, want %d", table, len(row), len(dump.Columns))
		}
		if _, err := Execute(ctx, h, stmt, row...); err != nil {
			return fmt.Errorf("restore: insert into %s: %w", table, err)
		}
	}
	return nil
}
