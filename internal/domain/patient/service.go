package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, p *Patient) error {
	p.ClinicID = clinicID
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("name is required")
	}
	if p.Email != nil && *p.Email != "" && !strings.Contains(*p.Email, "@") {
		return apperr.Validation("invalid email: %s", *p.Email)
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(time.Now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	p.IsActive = true
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ClinicID, p.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = existing.Name
	}
	if p.Email != nil && *p.Email != "" && !strings.Contains(*p.Email, "@") {
		return apperr.Validation("invalid email: %s", *p.Email)
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(time.Now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	p.IsActive = existing.IsActive
	return s.repo.Update(ctx, p)
}

// Deactivate soft-deletes a patient. Records with appointment and billing
// history are never removed.
func (s *Service) Deactivate(ctx context.Context, clinicID, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.repo.Search(ctx, clinicID, q, limit, offset)
	}
	return s.repo.List(ctx, clinicID, limit, offset)
}
