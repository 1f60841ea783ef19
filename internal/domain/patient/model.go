package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name           string     `db:"name" json:"name"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         *string    `db:"gender" json:"gender,omitempty"`
	BloodGroup     *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies      *string    `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory *string    `db:"medical_history" json:"medical_history,omitempty"`
	AddressLine1   *string    `db:"address_line1" json:"address_line1,omitempty"`
	City           *string    `db:"city" json:"city,omitempty"`
	State          *string    `db:"state" json:"state,omitempty"`
	PostalCode     *string    `db:"postal_code" json:"postal_code,omitempty"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
