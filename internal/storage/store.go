package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys=ON`

	defaultBusyTimeout = 5 * time.Second
)

// Options tunes Open. The zero value applies the default migration list, the
// wall clock, and a 5s busy timeout.
type Options struct {
	// Migrations overrides the built-in migration list. Intended for tests.
	Migrations []Migration
	// Now supplies the current time for timestamps and date validation.
	Now func() time.Time
	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration
}

// Store owns the single database handle and exposes one repository per
// entity. Access is serialized through one connection; a caller invoking the
// database while a transaction is in flight waits for it to complete.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time

	Users          UserRepository
	Pets           PetRepository
	Bookings       BookingRepository
	MedicalRecords MedicalRecordRepository
	Reviews        ReviewRepository
}

func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open storage: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open storage: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	// One logical connection: the second caller blocks until the in-flight
	// transaction completes instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	busyTimeout := opts.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	if err := configureSQLite(db, busyTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}

	migrations := opts.Migrations
	if migrations == nil {
		migrations = DefaultMigrations()
	}
	if err := Migrate(db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureDBPermissions(path); err != nil {
		_ = db.Close()
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store := &Store{
		db:   db,
		path: path,
		now:  now,
	}
	store.Users = &userRepository{db: db, now: now}
	store.Pets = &petRepository{db: db, now: now}
	store.Bookings = &bookingRepository{db: db, now: now}
	store.MedicalRecords = &medicalRecordRepository{db: db, now: now}
	store.Reviews = &reviewRepository{db: db, now: now}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func configureSQLite(db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		pragmaJournalModeWAL,
		pragmaForeignKeysOn,
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("configure sqlite %q: %w", stmt, err)
		}
	}
	return nil
}

func ensureDBPermissions(path string) error {
	if err := os.Chmod(path, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set db file permissions: %w", err)
		}
	}

	walPath := path + "-wal"
	if err := os.Chmod(walPath, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set wal file permissions: %w", err)
		}
	}
	return nil
}
