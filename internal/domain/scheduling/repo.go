package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows appointment listings.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	Date      *time.Time
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListForDoctorOnDate returns the doctor's non-cancelled appointments
	// for the calendar day containing date.
	ListForDoctorOnDate(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)
	// HasOverlap reports whether the doctor already has a non-cancelled
	// appointment intersecting [start, end), excluding excludeID if set.
	HasOverlap(ctx context.Context, clinicID, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	// Queue returns the doctor's same-day non-cancelled appointments ordered
	// by explicit queue position, then start time.
	Queue(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)
}
