package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type medicalRecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

func (r *medicalRecordRepository) Create(ctx context.Context, record *MedicalRecord) error {
	if record == nil {
		return &ValidationError{Field: "record", Reason: "is nil"}
	}
	if record.PetID <= 0 {
		return &ValidationError{Field: "pet_id", Reason: "is required"}
	}
	if strings.TrimSpace(record.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if err := validateDate("visit_date", record.VisitDate); err != nil {
		return err
	}
	if record.NextVisit != "" {
		if err := validateDate("next_visit", record.NextVisit); err != nil {
			return err
		}
	}
	if record.Cost < 0 {
		return &ValidationError{Field: "cost", Reason: "must not be negative"}
	}

	now := r.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	return RunInTransaction(ctx, r.db, func(h Handle) error {
		exists, err := rowExists(ctx, h, "pets", record.PetID)
		if err != nil {
			return err
		}
		if !exists {
			return &ConstraintError{Kind: ConstraintForeignKey, Field: "pet_id"}
		}

		res, err := Execute(ctx, h, `
			INSERT INTO medical_records(pet_id, title, visit_date, diagnosis, treatment, medications,
				cost, vet_name, vet_clinic, next_visit, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, record.PetID, record.Title, record.VisitDate, record.Diagnosis, record.Treatment, record.Medications,
			record.Cost, record.VetName, record.VetClinic, record.NextVisit, fmtTime(now), fmtTime(now))
		if err != nil {
			if cerr := translateConstraint(err, "pet_id"); cerr != nil {
				return cerr
			}
			return fmt.Errorf("create medical record: %w", err)
		}
		record.ID = res.LastInsertID
		return nil
	})
}

func (r *medicalRecordRepository) Get(ctx context.Context, id int64) (*MedicalRecord, error) {
	row := QueryOne(ctx, r.db, medicalRecordSelect+` WHERE id = ?`, id)

	record, err := scanMedicalRecord(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medical record: %w", err)
	}
	return record, nil
}

func (r *medicalRecordRepository) List(ctx context.Context, filter MedicalRecordFilter) ([]MedicalRecord, error) {
	query := medicalRecordSelect + ` WHERE 1=1 `
	args := []any{}
	if filter.PetID > 0 {
		query += ` AND pet_id = ? `
		args = append(args, filter.PetID)
	}
	query += ` ORDER BY visit_date DESC, id DESC `

	rows, err := QueryMany(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()

	var out []MedicalRecord
	for rows.Next() {
		record, err := scanMedicalRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list medical records: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list medical records: iterate: %w", err)
	}
	return out, nil
}

func (r *medicalRecordRepository) Update(ctx context.Context, id int64, update MedicalRecordUpdate) (int64, error) {
	var b updateBuilder
	if update.Title != nil {
		if strings.TrimSpace(*update.Title) == "" {
			return 0, &ValidationError{Field: "title", Reason: "is required"}
		}
		b.set("title", *update.Title)
	}
	if update.Diagnosis != nil {
		b.set("diagnosis", *update.Diagnosis)
	}
	if update.Treatment != nil {
		b.set("treatment", *update.Treatment)
	}
	if update.Medications != nil {
		b.set("medications", *update.Medications)
	}
	if update.Cost != nil {
		if *update.Cost < 0 {
			return 0, &ValidationError{Field: "cost", Reason: "must not be negative"}
		}
		b.set("cost", *update.Cost)
	}
	if update.VetName != nil {
		b.set("vet_name", *update.VetName)
	}
	if update.VetClinic != nil {
		b.set("vet_clinic", *update.VetClinic)
	}
	if update.NextVisit != nil {
		if *update.NextVisit != "" {
			if err := validateDate("next_visit", *update.NextVisit); err != nil {
				return 0, err
			}
		}
		b.set("next_visit", *update.NextVisit)
	}
	if b.empty() {
		return 0, &ValidationError{Field: "update", Reason: "no fields to update"}
	}

	return b.apply(ctx, r.db, "medical_records", id, fmtTime(r.now()))
}

func (r *medicalRecordRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return deleteByID(ctx, r.db, "medical_records", "", id)
}

const medicalRecordSelect = `
	SELECT id, pet_id, title, visit_date, diagnosis, treatment, medications,
		cost, vet_name, vet_clinic, next_visit, created_at, updated_at
	FROM medical_records
`

func scanMedicalRecord(scanner rowScanner) (*MedicalRecord, error) {
	var (
		record    MedicalRecord
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&record.ID, &record.PetID, &record.Title, &record.VisitDate, &record.Diagnosis,
		&record.Treatment, &record.Medications, &record.Cost, &record.VetName, &record.VetClinic,
		&record.NextVisit, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	record.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	record.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
