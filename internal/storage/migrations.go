package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is a one-time schema change applied in version order and recorded
// so it is never reapplied.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// MigrationRecord is one applied entry from the migrations table.
type MigrationRecord struct {
	Version   int
	AppliedAt time.Time
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create entity tables and foreign key indexes",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					email TEXT NOT NULL UNIQUE,
					phone TEXT NOT NULL DEFAULT '',
					address TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS pets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					owner_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					species TEXT NOT NULL,
					breed TEXT NOT NULL DEFAULT '',
					age INTEGER NOT NULL DEFAULT 0,
					weight REAL NOT NULL DEFAULT 0,
					size TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					FOREIGN KEY(owner_id) REFERENCES users(id)
				)`,
				`CREATE TABLE IF NOT EXISTS bookings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					owner_id INTEGER NOT NULL,
					pet_id INTEGER NOT NULL,
					service_name TEXT NOT NULL,
					pickup_address TEXT NOT NULL DEFAULT '',
					dropoff_address TEXT NOT NULL DEFAULT '',
					scheduled_date TEXT NOT NULL,
					scheduled_time TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					price REAL NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					FOREIGN KEY(owner_id) REFERENCES users(id),
					FOREIGN KEY(pet_id) REFERENCES pets(id)
				)`,
				`CREATE TABLE IF NOT EXISTS medical_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pet_id INTEGER NOT NULL,
					title TEXT NOT NULL,
					visit_date TEXT NOT NULL,
					diagnosis TEXT NOT NULL DEFAULT '',
					treatment TEXT NOT NULL DEFAULT '',
					medications TEXT NOT NULL DEFAULT '',
					cost REAL NOT NULL DEFAULT 0,
					vet_name TEXT NOT NULL DEFAULT '',
					vet_clinic TEXT NOT NULL DEFAULT '',
					next_visit TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					FOREIGN KEY(pet_id) REFERENCES pets(id)
				)`,
				`CREATE TABLE IF NOT EXISTS reviews (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					booking_id INTEGER NOT NULL UNIQUE,
					user_id INTEGER NOT NULL,
					pilot_id INTEGER NOT NULL DEFAULT 0,
					rating INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
					comment TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					FOREIGN KEY(booking_id) REFERENCES bookings(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_pets_owner_id ON pets(owner_id)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_owner_id ON bookings(owner_id)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_pet_id ON bookings(pet_id)`,
				`CREATE INDEX IF NOT EXISTS idx_medical_records_pet_id ON medical_records(pet_id)`,
				`CREATE INDEX IF NOT EXISTS idx_reviews_booking_id ON reviews(booking_id)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply migration v1 statement: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "add bookings notes",
		Up: func(tx *sql.Tx) error {
			ok, err := columnExists(tx, "bookings", "notes")
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			if _, err := tx.Exec(`ALTER TABLE bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`); err != nil {
				return fmt.Errorf("add bookings.notes: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "index bookings by status and slot",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(pet_id, scheduled_date, scheduled_time)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply migration v3 statement: %w", err)
				}
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// EnsureSchema creates the migration bookkeeping table. Idempotent.
func EnsureSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("ensure schema: db is nil")
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Migrate applies, in ascending version order, every migration whose version
// exceeds the highest recorded one. Each migration and its record commit in a
// single transaction, so a crash mid-migration leaves the database at the
// previous version, never a partially-applied one. Re-running with the same
// list is a no-op.
func Migrate(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: db is nil")
	}

	if err := EnsureSchema(db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := appliedVersion(db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(`INSERT INTO migrations(version, applied_at) VALUES(?, ?)`, migration.Version, fmtTime(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", migration.Version, err)
		}
	}

	return nil
}

// AppliedMigrations returns every recorded migration in version order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var (
			record  MigrationRecord
			applied string
		)
		if err := rows.Scan(&record.Version, &applied); err != nil {
			return nil, fmt.Errorf("list applied migrations: scan row: %w", err)
		}
		record.AppliedAt, err = parseTime(applied)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: iterate: %w", err)
	}
	return out, nil
}

func appliedVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read applied migration version: %w", err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return false, fmt.Errorf("query table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dfltVal sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dfltVal, &pk); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return false, nil
}
