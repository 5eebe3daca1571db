package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newReviewFixture(t *testing.T) (*Store, *User, *Booking) {
	t.Helper()
	store := newTestStore(t)
	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")
	booking := createTestBooking(t, store, user.ID, pet.ID, "2024-01-20", "10:00")
	return store, user, booking
}

func TestReviewCreateAndGetByBooking(t *testing.T) {
	t.Parallel()

	store, user, booking := newReviewFixture(t)
	ctx := context.Background()

	review := &Review{BookingID: booking.ID, UserID: user.ID, PilotID: 7, Rating: 5, Comment: "Buddy arrived happy"}
	require.NoError(t, store.Reviews.Create(ctx, review))
	require.NotZero(t, review.ID)

	loaded, err := store.Reviews.GetByBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, review.ID, loaded.ID)
	require.Equal(t, 5, loaded.Rating)
	require.Equal(t, int64(7), loaded.PilotID)
}

func TestReviewOnePerBooking(t *testing.T) {
	t.Parallel()

	store, user, booking := newReviewFixture(t)
	ctx := context.Background()

	first := &Review{BookingID: booking.ID, UserID: user.ID, Rating: 4}
	require.NoError(t, store.Reviews.Create(ctx, first))

	second := &Review{BookingID: booking.ID, UserID: user.ID, Rating: 2}
	err := store.Reviews.Create(ctx, second)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, 1, countRows(t, store, "reviews"))
}

func TestReviewRatingBounds(t *testing.T) {
	t.Parallel()

	store, user, booking := newReviewFixture(t)
	ctx := context.Background()

	var verr *ValidationError
	for _, rating := range []int{0, -1, 6} {
		err := store.Reviews.Create(ctx, &Review{BookingID: booking.ID, UserID: user.ID, Rating: rating})
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "rating", verr.Field)
	}
	require.Equal(t, 0, countRows(t, store, "reviews"))
}

func TestReviewCreateRejectsMissingBooking(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := createTestUser(t, store, "john@example.com")

	err := store.Reviews.Create(context.Background(), &Review{BookingID: 42, UserID: user.ID, Rating: 4})
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ConstraintForeignKey, cerr.Kind)
	require.Equal(t, "booking_id", cerr.Field)
}

func TestReviewListByPilot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "john@example.com")
	pet := createTestPet(t, store, user.ID, "Buddy")
	b1 := createTestBooking(t, store, user.ID, pet.ID, "2024-01-20", "10:00")
	b2 := createTestBooking(t, store, user.ID, pet.ID, "2024-01-21", "10:00")
	b3 := createTestBooking(t, store, user.ID, pet.ID, "2024-01-22", "10:00")

	require.NoError(t, store.Reviews.Create(ctx, &Review{BookingID: b1.ID, UserID: user.ID, PilotID: 7, Rating: 5}))
	require.NoError(t, store.Reviews.Create(ctx, &Review{BookingID: b2.ID, UserID: user.ID, PilotID: 7, Rating: 3}))
	require.NoError(t, store.Reviews.Create(ctx, &Review{BookingID: b3.ID, UserID: user.ID, PilotID: 9, Rating: 4}))

	reviews, err := store.Reviews.List(ctx, ReviewFilter{PilotID: 7})
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	for _, review := range reviews {
		require.Equal(t, int64(7), review.PilotID)
	}
}

func TestReviewUpdateRatingAndComment(t *testing.T) {
	t.Parallel()

	store, user, booking := newReviewFixture(t)
	ctx := context.Background()

	review := &Review{BookingID: booking.ID, UserID: user.ID, Rating: 3, Comment: "fine"}
	require.NoError(t, store.Reviews.Create(ctx, review))

	rating := 5
	comment := "actually excellent"
	count, err := store.Reviews.Update(ctx, review.ID, ReviewUpdate{Rating: &rating, Comment: &comment})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	loaded, err := store.Reviews.Get(ctx, review.ID)
	require.NoError(t, err)
	require.Equal(t, 5, loaded.Rating)
	require.Equal(t, comment, loaded.Comment)

	bad := 0
	var verr *ValidationError
	_, err = store.Reviews.Update(ctx, review.ID, ReviewUpdate{Rating: &bad})
	require.ErrorAs(t, err, &verr)
}

func TestReviewDeleteFreesBookingForNewReview(t *testing.T) {
	t.Parallel()

	store, user, booking := newReviewFixture(t)
	ctx := context.Background()

	review := &Review{BookingID: booking.ID, UserID: user.ID, Rating: 2}
	require.NoError(t, store.Reviews.Create(ctx, review))

	count, err := store.Reviews.Delete(ctx, review.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	replacement := &Review{BookingID: booking.ID, UserID: user.ID, Rating: 4}
	require.NoError(t, store.Reviews.Create(ctx, replacement))
}
