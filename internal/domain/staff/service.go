package staff

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/clinic"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// ClinicLookup resolves clinic details for notification payloads.
// Satisfied by *clinic.Service.
type ClinicLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error)
}

type Service struct {
	repo       Repository
	clinics    ClinicLookup
	dispatcher notification.Dispatcher
}

func NewService(repo Repository, clinics ClinicLookup, dispatcher notification.Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = notification.NopDispatcher{}
	}
	return &Service{repo: repo, clinics: clinics, dispatcher: dispatcher}
}

var validRoles = map[auth.Role]bool{
	auth.RoleAdmin: true, auth.RoleDoctor: true, auth.RoleReceptionist: true,
	auth.RoleStaff: true, auth.RoleNurse: true, auth.RoleLabTechnician: true,
	auth.RolePharmacist: true,
}

// Register creates a pending staff record. A second registration with the
// same email while one is still pending is rejected as a conflict rather
// than silently creating a duplicate.
func (s *Service) Register(ctx context.Context, clinicID uuid.UUID, st *Staff) error {
	st.ClinicID = clinicID
	if strings.TrimSpace(st.Name) == "" {
		return apperr.Validation("name is required")
	}
	st.Email = strings.TrimSpace(strings.ToLower(st.Email))
	if st.Email == "" || !strings.Contains(st.Email, "@") {
		return apperr.Validation("valid email is required")
	}
	if !validRoles[st.Role] {
		return apperr.Validation("invalid role: %s", st.Role)
	}

	existing, err := s.repo.GetByEmail(ctx, clinicID, st.Email)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}
	if existing != nil {
		if existing.ApprovalStatus == ApprovalPending {
			return apperr.Conflict("a pending registration already exists for %s", st.Email)
		}
		if existing.IsActive {
			return apperr.Conflict("an active staff member already uses %s", st.Email)
		}
	}

	st.IsApproved = false
	st.ApprovalStatus = ApprovalPending
	st.IsActive = true
	return s.repo.Create(ctx, st)
}

// Approve marks a pending staff member approved. Approving an already
// approved member is a no-op so retried approvals stay safe.
func (s *Service) Approve(ctx context.Context, clinicID, id, approverID uuid.UUID) (*Staff, error) {
	st, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if st.ApprovalStatus == ApprovalApproved {
		return st, nil
	}
	if st.ApprovalStatus == ApprovalRejected {
		return nil, apperr.Conflict("cannot approve a rejected registration")
	}

	now := time.Now()
	st.IsApproved = true
	st.ApprovalStatus = ApprovalApproved
	st.ApprovedBy = &approverID
	st.ApprovedAt = &now
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}

	clinicName := ""
	if s.clinics != nil {
		if cl, err := s.clinics.Get(ctx, clinicID); err == nil {
			clinicName = cl.Name
		}
	}
	s.dispatcher.Dispatch(ctx, "staff-approved", map[string]string{
		"staff_name":  st.Name,
		"clinic_name": clinicName,
		"role":        string(st.Role),
	}, st.Email)

	return st, nil
}

func (s *Service) Reject(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	st, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if st.ApprovalStatus == ApprovalApproved {
		return nil, apperr.Conflict("cannot reject an approved staff member")
	}
	st.IsApproved = false
	st.ApprovalStatus = ApprovalRejected
	st.IsActive = false
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) Update(ctx context.Context, st *Staff) error {
	existing, err := s.repo.GetByID(ctx, st.ClinicID, st.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(st.Name) == "" {
		st.Name = existing.Name
	}
	if st.Email == "" {
		st.Email = existing.Email
	}
	if st.Role == "" {
		st.Role = existing.Role
	}
	if !validRoles[st.Role] {
		return apperr.Validation("invalid role: %s", st.Role)
	}
	// Approval state only changes through Approve/Reject.
	st.IsApproved = existing.IsApproved
	st.ApprovalStatus = existing.ApprovalStatus
	st.ApprovedBy = existing.ApprovedBy
	st.ApprovedAt = existing.ApprovedAt
	st.IsActive = existing.IsActive
	return s.repo.Update(ctx, st)
}

func (s *Service) Deactivate(ctx context.Context, clinicID, id uuid.UUID) error {
	st, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if !st.IsActive {
		return nil
	}
	st.IsActive = false
	return s.repo.Update(ctx, st)
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, role auth.Role, limit, offset int) ([]*Staff, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, apperr.Validation("invalid role: %s", role)
	}
	return s.repo.ListByClinic(ctx, clinicID, role, limit, offset)
}

func (s *Service) ListPending(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Staff, int, error) {
	return s.repo.ListPending(ctx, clinicID, limit, offset)
}
