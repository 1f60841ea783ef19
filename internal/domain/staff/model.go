package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// Staff is a clinic principal: doctors, receptionists, nurses and other
// clinical roles. Clinical roles must be approved before the auth boundary
// lets them into clinic operations.
type Staff struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClinicID        uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name            string     `db:"name" json:"name"`
	Email           string     `db:"email" json:"email"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Role            auth.Role  `db:"role" json:"role"`
	Specialization  *string    `db:"specialization" json:"specialization,omitempty"`
	IsApproved      bool       `db:"is_approved" json:"is_approved"`
	ApprovalStatus  string     `db:"approval_status" json:"approval_status"`
	IsEmailVerified bool       `db:"is_email_verified" json:"is_email_verified"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	ApprovedBy      *uuid.UUID `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)
