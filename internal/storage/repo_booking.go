package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type bookingRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Create validates the booking, then runs the time-slot conflict check and
// the insert inside one transaction so no competing insert can land between
// the check and the write.
func (r *bookingRepository) Create(ctx context.Context, booking *Booking) error {
	if booking == nil {
		return &ValidationError{Field: "booking", Reason: "is nil"}
	}
	if booking.OwnerID <= 0 {
		return &ValidationError{Field: "owner_id", Reason: "is required"}
	}
	if booking.PetID <= 0 {
		return &ValidationError{Field: "pet_id", Reason: "is required"}
	}
	if strings.TrimSpace(booking.ServiceName) == "" {
		return &ValidationError{Field: "service_name", Reason: "is required"}
	}
	if err := r.validateSlot(booking.ScheduledDate, booking.ScheduledTime); err != nil {
		return err
	}
	if booking.Status == "" {
		booking.Status = StatusPending
	}
	if booking.Status != StatusPending {
		return &ValidationError{Field: "status", Reason: "new bookings must start as pending"}
	}

	now := r.now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		ownerExists, err := rowExists(ctx, h, "users", booking.OwnerID)
		if err != nil {
			return err
		}
		if !ownerExists {
			return &ConstraintError{Kind: ConstraintForeignKey, Field: "owner_id"}
		}
		petExists, err := rowExists(ctx, h, "pets", booking.PetID)
		if err != nil {
			return err
		}
		if !petExists {
			return &ConstraintError{Kind: ConstraintForeignKey, Field: "pet_id"}
		}

		taken, err := slotTaken(ctx, h, booking.PetID, booking.ScheduledDate, booking.ScheduledTime, 0)
		if err != nil {
			return err
		}
		if taken {
			return &ConflictError{Reason: "time slot not available"}
		}

		res, err := Execute(ctx, h, `
			INSERT INTO bookings(owner_id, pet_id, service_name, pickup_address, dropoff_address,
				scheduled_date, scheduled_time, status, price, notes, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, booking.OwnerID, booking.PetID, booking.ServiceName, booking.PickupAddress, booking.DropoffAddress,
			booking.ScheduledDate, booking.ScheduledTime, string(booking.Status), booking.Price, booking.Notes,
			fmtTime(now), fmtTime(now))
		if err != nil {
			if cerr := translateConstraint(err, "pet_id"); cerr != nil {
				return cerr
			}
			return fmt.Errorf("create booking: %w", err)
		}
		booking.ID = res.LastInsertID
		return nil
	})
}

func (r *bookingRepository) Get(ctx context.Context, id int64) (*Booking, error) {
	row := QueryOne(ctx, r.db, bookingSelect+` WHERE id = ?`, id)

	booking, err := scanBooking(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	query := bookingSelect + ` WHERE 1=1 `
	args := []any{}
	if filter.OwnerID > 0 {
		query += ` AND owner_id = ? `
		args = append(args, filter.OwnerID)
	}
	if filter.PetID > 0 {
		query += ` AND pet_id = ? `
		args = append(args, filter.PetID)
	}
	if filter.Status != "" {
		query += ` AND status = ? `
		args = append(args, string(filter.Status))
	}
	if filter.DateFrom != "" {
		query += ` AND scheduled_date >= ? `
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += ` AND scheduled_date <= ? `
		args = append(args, filter.DateTo)
	}
	query += ` ORDER BY scheduled_date ASC, scheduled_time ASC, id ASC `

	rows, err := QueryMany(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		out = append(out, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: iterate: %w", err)
	}
	return out, nil
}

func (r *bookingRepository) Update(ctx context.Context, id int64, update BookingUpdate) (int64, error) {
	var b updateBuilder
	if update.ServiceName != nil {
		if strings.TrimSpace(*update.ServiceName) == "" {
			return 0, &ValidationError{Field: "service_name", Reason: "is required"}
		}
		b.set("service_name", *update.ServiceName)
	}
	if update.PickupAddress != nil {
		b.set("pickup_address", *update.PickupAddress)
	}
	if update.DropoffAddress != nil {
		b.set("dropoff_address", *update.DropoffAddress)
	}
	if update.Price != nil {
		if *update.Price < 0 {
			return 0, &ValidationError{Field: "price", Reason: "must not be negative"}
		}
		b.set("price", *update.Price)
	}
	if update.Notes != nil {
		b.set("notes", *update.Notes)
	}
	if b.empty() {
		return 0, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	return b.apply(ctx, r.db, "bookings", id, fmtTime(r.now()))
}

func (r *bookingRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return deleteByID(ctx, r.db, "bookings", "booking_id", id)
}

// UpdateStatus loads the current status and writes the new one atomically,
// rejecting transitions the state machine does not allow.
func (r *bookingRepository) UpdateStatus(ctx context.Context, id int64, next BookingStatus) error {
	if !next.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", next)}
	}

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		current, err := currentStatus(ctx, h, id)
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(next) {
			return &StateTransitionError{From: current, To: next}
		}

		_, err = Execute(ctx, h, `
			UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?
		`, string(next), fmtTime(r.now()), id)
		if err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		return nil
	})
}

// Cancel is UpdateStatus to cancelled; the transition table restricts it to
// pending and confirmed bookings.
func (r *bookingRepository) Cancel(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, StatusCancelled)
}

// Reschedule moves the booking to a new slot, re-running the conflict check
// against the new date and time before writing. The booking's own row is
// excluded from the check.
func (r *bookingRepository) Reschedule(ctx context.Context, id int64, newDate, newTime string) error {
	if err := r.validateSlot(newDate, newTime); err != nil {
		return err
	}

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		var petID int64
		var status string
		err := QueryOne(ctx, h, `SELECT pet_id, status FROM bookings WHERE id = ?`, id).Scan(&petID, &status)
		if err != nil {
			if isNoRows(err) {
				return ErrNotFound
			}
			return &StorageError{Op: "query bookings", Err: err}
		}
		if current := BookingStatus(status); current == StatusCompleted || current == StatusCancelled {
			return &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot reschedule a %s booking", current)}
		}

		taken, err := slotTaken(ctx, h, petID, newDate, newTime, id)
		if err != nil {
			return err
		}
		if taken {
			return &ConflictError{Reason: "time slot not available"}
		}

		_, err = Execute(ctx, h, `
			UPDATE bookings SET scheduled_date = ?, scheduled_time = ?, updated_at = ? WHERE id = ?
		`, newDate, newTime, fmtTime(r.now()), id)
		if err != nil {
			return fmt.Errorf("reschedule booking: %w", err)
		}
		return nil
	})
}

func (r *bookingRepository) validateSlot(date, clock string) error {
	if err := validateDate("scheduled_date", date); err != nil {
		return err
	}
	if err := validateClockTime("scheduled_time", clock); err != nil {
		return err
	}
	scheduled, _ := time.Parse(dateLayout, date)
	today, _ := time.Parse(dateLayout, r.now().UTC().Format(dateLayout))
	if scheduled.Before(today) {
		return &ValidationError{Field: "scheduled_date", Reason: "must not be in the past"}
	}
	return nil
}

// slotTaken reports whether a non-cancelled booking already occupies the
// exact (pet, date, time) slot. excludeID skips the booking being moved.
func slotTaken(ctx context.Context, h Handle, petID int64, date, clock string, excludeID int64) (bool, error) {
	var count int
	err := QueryOne(ctx, h, `
		SELECT COUNT(1) FROM bookings
		WHERE pet_id = ? AND scheduled_date = ? AND scheduled_time = ? AND status != ? AND id != ?
	`, petID, date, clock, string(StatusCancelled), excludeID).Scan(&count)
	if err != nil {
		return false, &StorageError{Op: "query booking slot", Err: err}
	}
	return count > 0, nil
}

func currentStatus(ctx context.Context, h Handle, id int64) (BookingStatus, error) {
	var status string
	err := QueryOne(ctx, h, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return "", ErrNotFound
		}
		return "", &StorageError{Op: "query booking status", Err: err}
	}
	return BookingStatus(status), nil
}

const bookingSelect = `
	SELECT id, owner_id, pet_id, service_name, pickup_address, dropoff_address,
		scheduled_date, scheduled_time, status, price, notes, created_at, updated_at
	FROM bookings
`

func scanBooking(scanner rowScanner) (*Booking, error) {
	var (
		booking   Booking
		status    string
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&booking.ID, &booking.OwnerID, &booking.PetID, &booking.ServiceName,
		&booking.PickupAddress, &booking.DropoffAddress, &booking.ScheduledDate, &booking.ScheduledTime,
		&status, &booking.Price, &booking.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	booking.Status = BookingStatus(status)

	var err error
	booking.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	booking.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
