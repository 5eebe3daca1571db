package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type reviewRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Create enforces the one-review-per-booking rule inside the insert
// transaction; the UNIQUE index on booking_id backs it at the schema level.
func (r *reviewRepository) Create(ctx context.Context, review *Review) error {
	if review == nil {
		return &ValidationError{Field: "review", Reason: "is nil"}
	}
	if review.BookingID <= 0 {
		return &ValidationError{Field: "booking_id", Reason: "is required"}
	}
	if review.UserID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if review.Rating < 1 || review.Rating > 5 {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}

	now := r.now().UTC()
	review.CreatedAt = now

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		exists, err := rowExists(ctx, h, "bookings", review.BookingID)
		if err != nil {
			return err
		}
		if !exists {
			return &ConstraintError{Kind: ConstraintForeignKey, Field: "booking_id"}
		}

		var count int
		if err := QueryOne(ctx, h, `SELECT COUNT(1) FROM reviews WHERE booking_id = ?`, review.BookingID).Scan(&count); err != nil {
			return &StorageError{Op: "query reviews", Err: err}
		}
		if count > 0 {
			return &ConflictError{Reason: "review already exists"}
		}

		res, err := Execute(ctx, h, `
			INSERT INTO reviews(booking_id, user_id, pilot_id, rating, comment, created_at)
			VALUES(?, ?, ?, ?, ?, ?)
		`, review.BookingID, review.UserID, review.PilotID, review.Rating, review.Comment, fmtTime(now))
		if err != nil {
			if cerr := translateConstraint(err, "booking_id"); cerr != nil {
				return cerr
			}
			return fmt.Errorf("create review: %w", err)
		}
		review.ID = res.LastInsertID
		return nil
	})
}

func (r *reviewRepository) Get(ctx context.Context, id int64) (*Review, error) {
	row := QueryOne(ctx, r.db, reviewSelect+` WHERE id = ?`, id)

	review, err := scanReview(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *reviewRepository) GetByBooking(ctx context.Context, bookingID int64) (*Review, error) {
	row := QueryOne(ctx, r.db, reviewSelect+` WHERE booking_id = ?`, bookingID)

	review, err := scanReview(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review by booking: %w", err)
	}
	return review, nil
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]Review, error) {
	query := reviewSelect + ` WHERE 1=1 `
	args := []any{}
	if filter.UserID > 0 {
		query += ` AND user_id = ? `
		args = append(args, filter.UserID)
	}
	if filter.PilotID > 0 {
		query += ` AND pilot_id = ? `
		args = append(args, filter.PilotID)
	}
	query += ` ORDER BY id ASC `

	rows, err := QueryMany(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		out = append(out, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: iterate: %w", err)
	}
	return out, nil
}

func (r *reviewRepository) Update(ctx context.Context, id int64, update ReviewUpdate) (int64, error) {
	var b updateBuilder
	if update.Rating != nil {
		if *update.Rating < 1 || *update.Rating > 5 {
			return 0, &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
		}
		b.set("rating", *update.Rating)
	}
	if update.Comment != nil {
		b.set("comment", *update.Comment)
	}
	if b.empty() {
		return 0, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	// reviews carry no updated_at column
	return b.apply(ctx, r.db, "reviews", id, "")
}

func (r *reviewRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return deleteByID(ctx, r.db, "reviews", "", id)
}

const reviewSelect = `
	SELECT id, booking_id, user_id, pilot_id, rating, comment, created_at
	FROM reviews
`

func scanReview(scanner rowScanner) (*Review, error) {
	var (
		review    Review
		createdAt string
	)
	if err := scanner.Scan(&review.ID, &review.BookingID, &review.UserID, &review.PilotID,
		&review.Rating, &review.Comment, &createdAt); err != nil {
		return nil, err
	}

	var err error
	review.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &review, nil
}
