package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// testNow pins the clock so the scenario dates used in tests are stable:
// bookings on 2024-01-20 are always five days out.
var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(rawDBPath(t), Options{Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func rawDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "petpilot.db")
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", rawDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func createTestUser(t *testing.T, store *Store, email string) *User {
	t.Helper()
	user := &User{Name: "John Doe", Email: email, Phone: "555-0100", Address: "1 Main St"}
	require.NoError(t, store.Users.Create(context.Background(), user))
	return user
}

func createTestPet(t *testing.T, store *Store, ownerID int64, name string) *Pet {
	t.Helper()
	pet := &Pet{OwnerID: ownerID, Name: name, Species: "Dog", Breed: "Beagle", Age: 3, Weight: 12.5, Size: "medium"}
	require.NoError(t, store.Pets.Create(context.Background(), pet))
	return pet
}

func createTestBooking(t *testing.T, store *Store, ownerID, petID int64, date, clock string) *Booking {
	t.Helper()
	booking := &Booking{
		OwnerID:        ownerID,
		PetID:          petID,
		ServiceName:    "Airport transfer",
		PickupAddress:  "1 Main St",
		DropoffAddress: "2 Oak Ave",
		ScheduledDate:  date,
		ScheduledTime:  clock,
		Price:          49.99,
	}
	require.NoError(t, store.Bookings.Create(context.Background(), booking))
	return booking
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var count int
	err := store.DB().QueryRow(`SELECT COUNT(1) FROM ` + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}
