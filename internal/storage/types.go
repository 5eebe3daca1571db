package storage

import (
	"context"
	"time"
)

type User struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        int64
	OwnerID   int64
	Name      string
	Species   string
	Breed     string
	Age       int
	Weight    float64
	Size      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

var legalTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s BookingStatus) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             int64
	OwnerID        int64
	PetID          int64
	ServiceName    string
	PickupAddress  string
	DropoffAddress string
	ScheduledDate  string // 2006-01-02
	ScheduledTime  string // 15:04
	Status         BookingStatus
	Price          float64
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MedicalRecord struct {
	ID          int64
	PetID       int64
	Title       string
	VisitDate   string
	Diagnosis   string
	Treatment   string
	Medications string
	Cost        float64
	VetName     string
	VetClinic   string
	NextVisit   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Review struct {
	ID        int64
	BookingID int64
	UserID    int64
	PilotID   int64
	Rating    int
	Comment   string
	CreatedAt time.Time
}

type UserFilter struct {
	Email string
}

type PetFilter struct {
	OwnerID int64
}

type BookingFilter struct {
	OwnerID  int64
	PetID    int64
	Status   BookingStatus
	DateFrom string
	DateTo   string
}

type MedicalRecordFilter struct {
	PetID int64
}

type ReviewFilter struct {
	UserID  int64
	PilotID int64
}

// Partial updates carry only the fields to change; nil means leave as-is.
// Rows are never mutated by raw field assignment outside these.

type UserUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

type PetUpdate struct {
	Name    *string
	Species *string
	Breed   *string
	Age     *int
	Weight  *float64
	Size    *string
}

type BookingUpdate struct {
	ServiceName    *string
	PickupAddress  *string
	DropoffAddress *string
	Price          *float64
	Notes          *string
}

type MedicalRecordUpdate struct {
	Title       *string
	Diagnosis   *string
	Treatment   *string
	Medications *string
	Cost        *float64
	VetName     *string
	VetClinic   *string
	NextVisit   *string
}

type ReviewUpdate struct {
	Rating  *int
	Comment *string
}

// CascadeResult reports per-table deleted row counts from a cascading delete.
type CascadeResult struct {
	Users          int64
	Pets           int64
	Bookings       int64
	MedicalRecords int64
	Reviews        int64
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, error)
	Update(ctx context.Context, id int64, update UserUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteCascade(ctx context.Context, id int64) (CascadeResult, error)
}

type PetRepository interface {
	Create(ctx context.Context, pet *Pet) error
	Get(ctx context.Context, id int64) (*Pet, error)
	List(ctx context.Context, filter PetFilter) ([]Pet, error)
	Update(ctx context.Context, id int64, update PetUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	DeleteCascade(ctx context.Context, id int64) (CascadeResult, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	Get(ctx context.Context, id int64) (*Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]Booking, error)
	Update(ctx context.Context, id int64, update BookingUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	UpdateStatus(ctx context.Context, id int64, next BookingStatus) error
	Cancel(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, newDate, newTime string) error
}

type MedicalRecordRepository interface {
	Create(ctx context.Context, record *MedicalRecord) error
	Get(ctx context.Context, id int64) (*MedicalRecord, error)
	List(ctx context.Context, filter MedicalRecordFilter) ([]MedicalRecord, error)
	Update(ctx context.Context, id int64, update MedicalRecordUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *Review) error
	Get(ctx context.Context, id int64) (*Review, error)
	GetByBooking(ctx context.Context, bookingID int64) (*Review, error)
	List(ctx context.Context, filter ReviewFilter) ([]Review, error)
	Update(ctx context.Context, id int64, update ReviewUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}
