package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type userRepository struct {
	db  *sql.DB
	now func() time.Time
}

func (r *userRepository) Create(ctx context.Context, user *User) error {
	if user == nil {
		return &ValidationError{Field: "user", Reason: "is nil"}
	}
	if strings.TrimSpace(user.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := validateEmail(user.Email); err != nil {
		return err
	}

	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := Execute(ctx, r.db, `
		INSERT INTO users(name, email, phone, address, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, user.Name, user.Email, user.Phone, user.Address, fmtTime(now), fmtTime(now))
	if err != nil {
		if cerr := translateConstraint(err, ""); cerr != nil {
			return cerr
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = res.LastInsertID
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*User, error) {
	row := QueryOne(ctx, r.db, `
		SELECT id, name, email, phone, address, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id)

	user, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]User, error) {
	query := `
		SELECT id, name, email, phone, address, created_at, updated_at
		FROM users
		WHERE 1=1
	`
	args := []any{}
	if filter.Email != "" {
		query += ` AND email = ? `
		args = append(args, filter.Email)
	}
	query += ` ORDER BY id ASC `

	rows, err := QueryMany(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: iterate: %w", err)
	}
	return out, nil
}

func (r *userRepository) Update(ctx context.Context, id int64, update UserUpdate) (int64, error) {
	var b updateBuilder
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return 0, &ValidationError{Field: "name", Reason: "is required"}
		}
		b.set("name", *update.Name)
	}
	if update.Email != nil {
		if err := validateEmail(*update.Email); err != nil {
			return 0, err
		}
		b.set("email", *update.Email)
	}
	if update.Phone != nil {
		b.set("phone", *update.Phone)
	}
	if update.Address != nil {
		b.set("address", *update.Address)
	}
	if b.empty() {
		return 0, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	count, err := b.apply(ctx, r.db, "users", id, fmtTime(r.now()))
	if err != nil {
		if cerr := translateConstraint(err, ""); cerr != nil {
			return 0, cerr
		}
		return 0, err
	}
	return count, nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return deleteByID(ctx, r.db, "users", "owner_id", id)
}

// DeleteCascade removes the user together with every dependent row, children
// first, in one transaction: reviews on the user's bookings, the bookings,
// medical records of the user's pets, the pets, then the user.
func (r *userRepository) DeleteCascade(ctx context.Context, id int64) (CascadeResult, error) {
	var result CascadeResult
	err := RunInTransaction(ctx, r.db, func(h Handle) error {
		exists, err := rowExists(ctx, h, "users", id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		res, err := Execute(ctx, h, `
			DELETE FROM reviews
			WHERE booking_id IN (SELECT id FROM bookings WHERE owner_id = ?)
		`, id)
		if err != nil {
			return fmt.Errorf("cascade delete user reviews: %w", err)
		}
		result.Reviews = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM bookings WHERE owner_id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete user bookings: %w", err)
		}
		result.Bookings = res.RowsAffected

		res, err = Execute(ctx, h, `
			DELETE FROM medical_records
			WHERE pet_id IN (SELECT id FROM pets WHERE owner_id = ?)
		`, id)
		if err != nil {
			return fmt.Errorf("cascade delete user medical records: %w", err)
		}
		result.MedicalRecords = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM pets WHERE owner_id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete user pets: %w", err)
		}
		result.Pets = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete user: %w", err)
		}
		result.Users = res.RowsAffected
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (*User, error) {
	var (
		user      User
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.Address, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	user.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
