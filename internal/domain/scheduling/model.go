package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a booked visit. Rescheduling mutates the times in place and
// appends to RescheduleHistory, so the full movement of a booking stays
// reconstructable.
type Appointment struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	ClinicID           uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	StartTime          time.Time         `db:"start_time" json:"start_time"`
	EndTime            time.Time         `db:"end_time" json:"end_time"`
	Status             string            `db:"status" json:"status"`
	Reason             *string           `db:"reason" json:"reason,omitempty"`
	CancelledBy        *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	QueuePosition      *int              `db:"queue_position" json:"queue_position,omitempty"`
	RescheduleHistory  []RescheduleEntry `db:"reschedule_history" json:"reschedule_history,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// RescheduleEntry records one movement of the appointment.
type RescheduleEntry struct {
	PreviousStartTime time.Time `json:"previous_start_time"`
	PreviousEndTime   time.Time `json:"previous_end_time"`
	RescheduledBy     uuid.UUID `json:"rescheduled_by"`
	Reason            *string   `json:"reason,omitempty"`
	RescheduledAt     time.Time `json:"rescheduled_at"`
}

const (
	StatusScheduled = "Scheduled"
	StatusConfirmed = "Confirmed"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusNoShow    = "NoShow"
)

// IsTerminal reports whether the appointment can no longer change state.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCancelled || a.Status == StatusCompleted || a.Status == StatusNoShow
}

// Slot is a free bookable interval.
type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
