package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/patient"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// ClinicHours resolves the clinic operating window as minutes since
// midnight. Satisfied by *clinic.Service.
type ClinicHours interface {
	OperatingWindow(ctx context.Context, clinicID uuid.UUID) (openMin, closeMin int, err error)
}

// PatientLookup resolves patients for notification recipients. Satisfied by
// *patient.Service.
type PatientLookup interface {
	Get(ctx context.Context, clinicID, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo       Repository
	hours      ClinicHours
	patients   PatientLookup
	dispatcher notification.Dispatcher

	// strictConflicts hard-rejects double-booking a doctor instead of
	// treating overlap as advisory.
	strictConflicts bool
}

func NewService(repo Repository, hours ClinicHours, patients PatientLookup, dispatcher notification.Dispatcher, strictConflicts bool) *Service {
	if dispatcher == nil {
		dispatcher = notification.NopDispatcher{}
	}
	return &Service{
		repo:            repo,
		hours:           hours,
		patients:        patients,
		dispatcher:      dispatcher,
		strictConflicts: strictConflicts,
	}
}

// Create books an appointment. The clinic is always the creating principal's
// clinic; a caller-supplied clinic id is ignored.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, a *Appointment) error {
	a.ClinicID = clinicID
	if a.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return apperr.Validation("doctor_id is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return apperr.Validation("start_time and end_time are required")
	}
	if !a.StartTime.Before(a.EndTime) {
		return apperr.Validation("start_time must be before end_time")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled && a.Status != StatusConfirmed {
		return apperr.Validation("new appointments must be Scheduled or Confirmed")
	}
	a.RescheduleHistory = nil
	a.CancelledBy = nil
	a.CancellationReason = nil

	if s.strictConflicts {
		busy, err := s.repo.HasOverlap(ctx, clinicID, a.DoctorID, a.StartTime, a.EndTime, nil)
		if err != nil {
			return err
		}
		if busy {
			return apperr.Conflict("doctor already has an appointment in that slot")
		}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.notifyPatient(ctx, a, "appointment-reminder", map[string]string{
		"date": a.StartTime.Format("2006-01-02"),
		"time": a.StartTime.Format("15:04"),
	})
	return nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, clinicID, f, limit, offset)
}

// Confirm moves a Scheduled appointment to Confirmed.
func (s *Service) Confirm(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, apperr.Conflict("only Scheduled appointments can be confirmed, current status %s", a.Status)
	}
	a.Status = StatusConfirmed
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Complete moves a Confirmed appointment to Completed.
func (s *Service) Complete(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusConfirmed {
		return nil, apperr.Conflict("only Confirmed appointments can be completed, current status %s", a.Status)
	}
	a.Status = StatusCompleted
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel terminates the appointment. Staff cancellations must carry a
// reason; patients may cancel their own without one.
func (s *Service) Cancel(ctx context.Context, clinicID, id, cancelledBy uuid.UUID, actorRole auth.Role, reason *string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, apperr.Conflict("appointment is already %s", a.Status)
	}
	if actorRole != auth.RolePatient && (reason == nil || *reason == "") {
		return nil, apperr.Validation("cancellation reason is required")
	}
	a.Status = StatusCancelled
	a.CancelledBy = &cancelledBy
	a.CancellationReason = reason
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notifyPatient(ctx, a, "appointment-cancelled", map[string]string{
		"date": a.StartTime.Format("2006-01-02"),
		"time": a.StartTime.Format("15:04"),
	})
	return a, nil
}

// MarkNoShow flags a Confirmed appointment whose slot passed without
// check-in.
func (s *Service) MarkNoShow(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusConfirmed {
		return nil, apperr.Conflict("only Confirmed appointments can be marked no-show, current status %s", a.Status)
	}
	if time.Now().Before(a.EndTime) {
		return nil, apperr.Validation("slot has not passed yet")
	}
	a.Status = StatusNoShow
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Reschedule moves the appointment in place and appends the previous times
// to the history. The appointment returns to Scheduled.
func (s *Service) Reschedule(ctx context.Context, clinicID, id, actorID uuid.UUID, newStart, newEnd time.Time, reason *string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, apperr.Conflict("cannot reschedule a %s appointment", a.Status)
	}
	if newStart.IsZero() || newEnd.IsZero() {
		return nil, apperr.Validation("start_time and end_time are required")
	}
	if !newStart.Before(newEnd) {
		return nil, apperr.Validation("start_time must be before end_time")
	}

	if s.strictConflicts {
		busy, err := s.repo.HasOverlap(ctx, clinicID, a.DoctorID, newStart, newEnd, &a.ID)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, apperr.Conflict("doctor already has an appointment in that slot")
		}
	}

	a.RescheduleHistory = append(a.RescheduleHistory, RescheduleEntry{
		PreviousStartTime: a.StartTime,
		PreviousEndTime:   a.EndTime,
		RescheduledBy:     actorID,
		Reason:            reason,
		RescheduledAt:     time.Now(),
	})
	a.StartTime = newStart
	a.EndTime = newEnd
	a.Status = StatusScheduled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notifyPatient(ctx, a, "appointment-rescheduled", map[string]string{
		"date": a.StartTime.Format("2006-01-02"),
		"time": a.StartTime.Format("15:04"),
	})
	return a, nil
}

// AvailableSlots subtracts the doctor's non-cancelled bookings from the
// clinic operating window and chunks the free intervals into slots of
// serviceDuration.
func (s *Service) AvailableSlots(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, serviceDuration time.Duration) ([]Slot, error) {
	if serviceDuration <= 0 {
		serviceDuration = 30 * time.Minute
	}
	openMin, closeMin, err := s.hours.OperatingWindow(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	windowStart := day.Add(time.Duration(openMin) * time.Minute)
	windowEnd := day.Add(time.Duration(closeMin) * time.Minute)

	booked, err := s.repo.ListForDoctorOnDate(ctx, clinicID, doctorID, date)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	cursor := windowStart
	for cursor.Add(serviceDuration).Before(windowEnd) || cursor.Add(serviceDuration).Equal(windowEnd) {
		end := cursor.Add(serviceDuration)
		if !overlapsAny(cursor, end, booked) {
			slots = append(slots, Slot{StartTime: cursor, EndTime: end})
		}
		cursor = end
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, booked []*Appointment) bool {
	for _, b := range booked {
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			return true
		}
	}
	return false
}

// Queue returns the doctor's same-day visit order: explicit queue positions
// first, then chronological.
func (s *Service) Queue(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	return s.repo.Queue(ctx, clinicID, doctorID, date)
}

// UpdateQueuePosition reorders a same-day appointment for walk-in triage.
func (s *Service) UpdateQueuePosition(ctx context.Context, clinicID, id uuid.UUID, position int) (*Appointment, error) {
	if position < 1 {
		return nil, apperr.Validation("position must be at least 1")
	}
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return nil, apperr.Conflict("cannot reorder a %s appointment", a.Status)
	}
	a.QueuePosition = &position
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) notifyPatient(ctx context.Context, a *Appointment, templateID string, data map[string]string) {
	if s.patients == nil {
		return
	}
	p, err := s.patients.Get(ctx, a.ClinicID, a.PatientID)
	if err != nil || p.Email == nil {
		return
	}
	if data == nil {
		data = map[string]string{}
	}
	data["patient_name"] = p.Name
	s.dispatcher.Dispatch(ctx, templateID, data, *p.Email)
}
