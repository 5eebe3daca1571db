package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPetCreateAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := &Pet{OwnerID: user.ID, Name: "Buddy", Species: "Dog", Breed: "Beagle", Age: 3, Weight: 12.5, Size: "medium"}
	require.NoError(t, store.Pets.Create(ctx, pet))
	require.NotZero(t, pet.ID)

	loaded, err := store.Pets.Get(ctx, pet.ID)
	require.NoError(t, err)
	require.Equal(t, "Buddy", loaded.Name)
	require.Equal(t, user.ID, loaded.OwnerID)
	require.Equal(t, 12.5, loaded.Weight)
}

func TestPetCreateRejectsMissingOwner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	pet := &Pet{OwnerID: 42, Name: "Ghost", Species: "Cat"}
	err := store.Pets.Create(context.Background(), pet)

	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintForeignKey, cerr.Kind)
	require.Equal(t, "owner_id", cerr.Field)
	require.Equal(t, 0, countRows(t, store, "pets"))
}

func TestPetCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "john@example.com")

	var verr *ValidationError
	require.ErrorAs(t, store.Pets.Create(ctx, &Pet{OwnerID: user.ID, Name: "", Species: "Dog"}), &verr)
	require.ErrorAs(t, store.Pets.Create(ctx, &Pet{OwnerID: user.ID, Name: "Buddy", Species: ""}), &verr)
	require.ErrorAs(t, store.Pets.Create(ctx, &Pet{OwnerID: 0, Name: "Buddy", Species: "Dog"}), &verr)
	require.Equal(t, 0, countRows(t, store, "pets"))
}

func TestPetListByOwner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")
	createTestPet(t, store, alice.ID, "Buddy")
	createTestPet(t, store, alice.ID, "Rex")
	createTestPet(t, store, bob.ID, "Milo")

	pets, err := store.Pets.List(ctx, PetFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, pets, 2)
	for _, pet := range pets {
		require.Equal(t, alice.ID, pet.OwnerID)
	}
}

func TestPetUpdatePartial(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")

	weight := 14.2
	count, err := store.Pets.Update(ctx, pet.ID, PetUpdate{Weight: &weight})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	loaded, err := store.Pets.Get(ctx, pet.ID)
	require.NoError(t, err)
	require.Equal(t, 14.2, loaded.Weight)
	require.Equal(t, "Buddy", loaded.Name)
}

func TestPetDeleteCascadeReturnsPerTableCounts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	buddy := createTestPet(t, store, user.ID, "Buddy")
	rex := createTestPet(t, store, user.ID, "Rex")

	for _, slot := range []string{"10:00", "11:00", "12:00"} {
		createTestBooking(t, store, user.ID, buddy.ID, "2024-01-20", slot)
	}
	for _, title := range []string{"Checkup", "Vaccination"} {
		record := &MedicalRecord{PetID: buddy.ID, Title: title, VisitDate: "2024-01-10"}
		require.NoError(t, store.MedicalRecords.Create(ctx, record))
	}
	keeper := createTestBooking(t, store, user.ID, rex.ID, "2024-01-20", "10:00")

	result, err := store.Pets.DeleteCascade(ctx, buddy.ID)
	require.NoError(t, err)
	require.Equal(t, CascadeResult{Pets: 1, Bookings: 3, MedicalRecords: 2}, result)

	_, err = store.Pets.Get(ctx, buddy.ID)
	require.ErrorIs(t, err, ErrNotFound)

	records, err := store.MedicalRecords.List(ctx, MedicalRecordFilter{PetID: buddy.ID})
	require.NoError(t, err)
	require.Empty(t, records)

	// The sibling pet's rows are untouched.
	_, err = store.Bookings.Get(ctx, keeper.ID)
	require.NoError(t, err)
}

func TestPetDeleteCascadeMissingPetReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Pets.DeleteCascade(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPetDeleteReturnsRowsAffected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")

	count, err := store.Pets.Delete(ctx, pet.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = store.Pets.Delete(ctx, pet.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestPetDeleteWithMedicalRecordsSurfacesForeignKeyConstraint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")
	record := &MedicalRecord{PetID: pet.ID, Title: "Checkup", VisitDate: "2024-01-10"}
	require.NoError(t, store.MedicalRecords.Create(ctx, record))

	_, err := store.Pets.Delete(ctx, pet.ID)
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintForeignKey, cerr.Kind)
	require.Equal(t, "pet_id", cerr.Field)

	_, err = store.Pets.Get(ctx, pet.ID)
	require.NoError(t, err)
}
