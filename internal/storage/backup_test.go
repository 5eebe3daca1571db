package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")
	booking := createTestBooking(t, store, user.ID, pet.ID, "2024-01-20", "10:00")
	record := &MedicalRecord{PetID: pet.ID, Title: "Checkup", VisitDate: "2024-01-10", Cost: 85}
	require.NoError(t, store.MedicalRecords.Create(ctx, record))
	review := &Review{BookingID: booking.ID, UserID: user.ID, PilotID: 7, Rating: 5, Comment: "great"}
	require.NoError(t, store.Reviews.Create(ctx, review))

	snapshot, err := store.Backup(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, snapshot.ID)
	require.Equal(t, testNow, snapshot.CreatedAt)
	require.Len(t, snapshot.Tables, len(snapshotTables))

	// Writes after the snapshot must not survive the restore.
	late := createTestUser(t, store, "late@example.com")
	latePet := createTestPet(t, store, late.ID, "Milo")
	createTestBooking(t, store, late.ID, latePet.ID, "2024-02-01", "09:00")
	_, err = store.Pets.Update(ctx, pet.ID, PetUpdate{Name: strPtr("Renamed")})
	require.NoError(t, err)

	require.NoError(t, store.Restore(ctx, snapshot))

	require.Equal(t, 1, countRows(t, store, "users"))
	require.Equal(t, 1, countRows(t, store, "pets"))
	require.Equal(t, 1, countRows(t, store, "bookings"))
	require.Equal(t, 1, countRows(t, store, "medical_records"))
	require.Equal(t, 1, countRows(t, store, "reviews"))

	// Row ids and contents come back exactly as snapshotted.
	restoredPet, err := store.Pets.Get(ctx, pet.ID)
	require.NoError(t, err)
	require.Equal(t, "Buddy", restoredPet.Name)

	restoredBooking, err := store.Bookings.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, restoredBooking.Status)
	require.Equal(t, "2024-01-20", restoredBooking.ScheduledDate)

	restoredReview, err := store.Reviews.GetByBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, review.ID, restoredReview.ID)

	_, err = store.Users.Get(ctx, late.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBackupOfEmptyDatabase(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	snapshot, err := store.Backup(ctx)
	require.NoError(t, err)
	for _, table := range snapshotTables {
		dump, ok := snapshot.Tables[table]
		require.True(t, ok)
		require.NotEmpty(t, dump.Columns)
		require.Empty(t, dump.Rows)
	}

	// Restoring an empty snapshot clears whatever was written since.
	user := createTestUser(t, store, "john@example.com")
	createTestPet(t, store, user.ID, "Buddy")
	require.NoError(t, store.Restore(ctx, snapshot))
	require.Equal(t, 0, countRows(t, store, "users"))
	require.Equal(t, 0, countRows(t, store, "pets"))
}

func TestRestoreNilSnapshot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.Error(t, store.Restore(context.Background(), nil))
}

func TestRestoreMalformedRowRollsBack(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "john@example.com")

	snapshot, err := store.Backup(ctx)
	require.NoError(t, err)
	users := snapshot.Tables["users"]
	users.Rows = append(users.Rows, []any{"too", "short"})
	snapshot.Tables["users"] = users

	err = store.Restore(ctx, snapshot)
	require.Error(t, err)
	var terr *TransactionError
	require.ErrorAs(t, err, &terr)

	// The pre-restore contents are intact.
	require.Equal(t, 1, countRows(t, store, "users"))
}

func TestSnapshotSkipsMigrationBookkeeping(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	snapshot, err := store.Backup(context.Background())
	require.NoError(t, err)
	_, ok := snapshot.Tables["migrations"]
	require.False(t, ok)
}

func strPtr(s string) *string { return &s }
