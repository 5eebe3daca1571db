package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserCreateAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := &User{Name: "John Doe", Email: "john@example.com", Phone: "555-0100", Address: "1 Main St"}
	require.NoError(t, store.Users.Create(ctx, user))
	require.Equal(t, int64(1), user.ID)
	require.False(t, user.CreatedAt.IsZero())

	loaded, err := store.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "John Doe", loaded.Name)
	require.Equal(t, "john@example.com", loaded.Email)
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "john@example.com")

	dup := &User{Name: "Jane Doe", Email: "john@example.com"}
	err := store.Users.Create(ctx, dup)

	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintUnique, cerr.Kind)
	require.Equal(t, "email", cerr.Field)
	require.Equal(t, 1, countRows(t, store, "users"))
}

func TestUserCreateValidationNeverTouchesStorage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		user *User
	}{
		{"empty name", &User{Name: "", Email: "a@example.com"}},
		{"empty email", &User{Name: "A", Email: ""}},
		{"malformed email", &User{Name: "A", Email: "not-an-email"}},
	}
	for _, tc := range cases {
		err := store.Users.Create(ctx, tc.user)
		var verr *ValidationError
		require.ErrorAsf(t, err, &verr, "case %s", tc.name)
	}
	require.Equal(t, 0, countRows(t, store, "users"))
}

func TestUserGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Users.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserListFiltersByEmail(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "a@example.com")
	createTestUser(t, store, "b@example.com")

	all, err := store.Users.List(ctx, UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	filtered, err := store.Users.List(ctx, UserFilter{Email: "b@example.com"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "b@example.com", filtered[0].Email)
}

func TestUserUpdatePartialLeavesOtherFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")

	phone := "555-0199"
	count, err := store.Users.Update(ctx, user.ID, UserUpdate{Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	loaded, err := store.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "555-0199", loaded.Phone)
	require.Equal(t, "John Doe", loaded.Name)
}

func TestUserUpdateMissingIDReturnsZeroRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	name := "Nobody"
	count, err := store.Users.Update(context.Background(), 42, UserUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestUserUpdateRejectsMalformedEmail(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := createTestUser(t, store, "john@example.com")

	bad := "nope"
	_, err := store.Users.Update(context.Background(), user.ID, UserUpdate{Email: &bad})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
}

func TestUserUpdateDuplicateEmailSurfacesConstraint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, store, "a@example.com")
	second := createTestUser(t, store, "b@example.com")

	taken := "a@example.com"
	_, err := store.Users.Update(ctx, second.ID, UserUpdate{Email: &taken})

	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintUnique, cerr.Kind)
	require.Equal(t, "email", cerr.Field)
}

func TestUserDeleteCascadeRemovesDependentsInOneTransaction(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	buddy := createTestPet(t, store, user.ID, "Buddy")
	rex := createTestPet(t, store, user.ID, "Rex")

	booking := createTestBooking(t, store, user.ID, buddy.ID, "2024-01-20", "10:00")
	createTestBooking(t, store, user.ID, rex.ID, "2024-01-21", "11:00")

	record := &MedicalRecord{PetID: buddy.ID, Title: "Checkup", VisitDate: "2024-01-10"}
	require.NoError(t, store.MedicalRecords.Create(ctx, record))

	review := &Review{BookingID: booking.ID, UserID: user.ID, PilotID: 7, Rating: 5, Comment: "great"}
	require.NoError(t, store.Reviews.Create(ctx, review))

	result, err := store.Users.DeleteCascade(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, CascadeResult{Users: 1, Pets: 2, Bookings: 2, MedicalRecords: 1, Reviews: 1}, result)

	for _, table := range []string{"users", "pets", "bookings", "medical_records", "reviews"} {
		require.Zerof(t, countRows(t, store, table), "expected %s to be empty", table)
	}
}

func TestUserDeleteCascadeMissingUserReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Users.DeleteCascade(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserDeleteWithPetsSurfacesForeignKeyConstraint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	createTestPet(t, store, user.ID, "Buddy")

	_, err := store.Users.Delete(ctx, user.ID)
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintForeignKey, cerr.Kind)
	require.Equal(t, "owner_id", cerr.Field)

	// The parent row survives the refused delete.
	_, err = store.Users.Get(ctx, user.ID)
	require.NoError(t, err)
}
