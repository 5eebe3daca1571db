package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type petRepository struct {
	db  *sql.DB
	now func() time.Time
}

func (r *petRepository) Create(ctx context.Context, pet *Pet) error {
	if pet == nil {
		return &ValidationError{Field: "pet", Reason: "is nil"}
	}
	if pet.OwnerID <= 0 {
		return &ValidationError{Field: "owner_id", Reason: "is required"}
	}
	if strings.TrimSpace(pet.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(pet.Species) == "" {
		return &ValidationError{Field: "species", Reason: "is required"}
	}

	now := r.now().UTC()
	pet.CreatedAt = now
	pet.UpdatedAt = now

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		exists, err := rowExists(ctx, h, "users", pet.OwnerID)
		if err != nil {
			return err
		}
		if !exists {
			return &ConstraintError{Kind: ConstraintForeignKey, Field: "owner_id"}
		}

		res, err := Execute(ctx, h, `
			INSERT INTO pets(owner_id, name, species, breed, age, weight, size, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, pet.OwnerID, pet.Name, pet.Species, pet.Breed, pet.Age, pet.Weight, pet.Size, fmtTime(now), fmtTime(now))
		if err != nil {
			if cerr := translateConstraint(err, "owner_id"); cerr != nil {
				return cerr
			}
			return fmt.Errorf("create pet: %w", err)
		}
		pet.ID = res.LastInsertID
		return nil
	})
}

func (r *petRepository) Get(ctx context.Context, id int64) (*Pet, error) {
	row := QueryOne(ctx, r.db, `
		SELECT id, owner_id, name, species, breed, age, weight, size, created_at, updated_at
		FROM pets
		WHERE id = ?
	`, id)

	pet, err := scanPet(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pet: %w", err)
	}
	return pet, nil
}

func (r *petRepository) List(ctx context.Context, filter PetFilter) ([]Pet, error) {
	query := `
		SELECT id, owner_id, name, species, breed, age, weight, size, created_at, updated_at
		FROM pets
		WHERE 1=1
	`
	args := []any{}
	if filter.OwnerID > 0 {
		query += ` AND owner_id = ? `
		args = append(args, filter.OwnerID)
	}
	query += ` ORDER BY id ASC `

	rows, err := QueryMany(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	var out []Pet
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("list pets: %w", err)
		}
		out = append(out, *pet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pets: iterate: %w", err)
	}
	return out, nil
}

func (r *petRepository) Update(ctx context.Context, id int64, update PetUpdate) (int64, error) {
	var b updateBuilder
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return 0, &ValidationError{Field: "name", Reason: "is required"}
		}
		b.set("name", *update.Name)
	}
	if update.Species != nil {
		if strings.TrimSpace(*update.Species) == "" {
			return 0, &ValidationError{Field: "species", Reason: "is required"}
		}
		b.set("species", *update.Species)
	}
	if update.Breed != nil {
		b.set("breed", *update.Breed)
	}
	if update.Age != nil {
		if *update.Age < 0 {
			return 0, &ValidationError{Field: "age", Reason: "must not be negative"}
		}
		b.set("age", *update.Age)
	}
	if update.Weight != nil {
		if *update.Weight < 0 {
			return 0, &ValidationError{Field: "weight", Reason: "must not be negative"}
		}
		b.set("weight", *update.Weight)
	}
	if update.Size != nil {
		b.set("size", *update.Size)
	}
	if b.empty() {
		return 0, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	return b.apply(ctx, r.db, "pets", id, fmtTime(r.now()))
}

func (r *petRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return deleteByID(ctx, r.db, "pets", "pet_id", id)
}

// DeleteCascade removes the pet and its dependents in one transaction:
// reviews on the pet's bookings, the bookings, medical records, then the pet.
func (r *petRepository) DeleteCascade(ctx context.Context, id int64) (CascadeResult, error) {
	var result CascadeResult
	err := RunInTransaction(ctx, r.db, func(h Handle) error {
		exists, err := rowExists(ctx, h, "pets", id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		res, err := Execute(ctx, h, `
			DELETE FROM reviews
			WHERE booking_id IN (SELECT id FROM bookings WHERE pet_id = ?)
		`, id)
		if err != nil {
			return fmt.Errorf("cascade delete pet reviews: %w", err)
		}
		result.Reviews = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM medical_records WHERE pet_id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete pet medical records: %w", err)
		}
		result.MedicalRecords = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM bookings WHERE pet_id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete pet bookings: %w", err)
		}
		result.Bookings = res.RowsAffected

		res, err = Execute(ctx, h, `DELETE FROM pets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("cascade delete pet: %w", err)
		}
		result.Pets = res.RowsAffected
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}
	return result, nil
}

func scanPet(scanner rowScanner) (*Pet, error) {
	var (
		pet       Pet
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&pet.ID, &pet.OwnerID, &pet.Name, &pet.Species, &pet.Breed, &pet.Age, &pet.Weight, &pet.Size, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	pet.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	pet.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &pet, nil
}
