package clinic

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validPlans = map[string]bool{
	"free": true, "basic": true, "premium": true, "enterprise": true,
}

func (s *Service) Create(ctx context.Context, c *Clinic) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Validation("name is required")
	}
	if c.SubscriptionPlan == "" {
		c.SubscriptionPlan = "free"
	}
	if !validPlans[c.SubscriptionPlan] {
		return apperr.Validation("invalid subscription plan: %s", c.SubscriptionPlan)
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	if c.Status != StatusActive && c.Status != StatusInactive {
		return apperr.Validation("invalid status: %s", c.Status)
	}
	if c.OpeningTime == "" {
		c.OpeningTime = "09:00"
	}
	if c.ClosingTime == "" {
		c.ClosingTime = "18:00"
	}
	open, err := parseClock(c.OpeningTime)
	if err != nil {
		return apperr.Validation("invalid opening_time: %s", c.OpeningTime)
	}
	closeAt, err := parseClock(c.ClosingTime)
	if err != nil {
		return apperr.Validation("invalid closing_time: %s", c.ClosingTime)
	}
	if open >= closeAt {
		return apperr.Validation("opening_time must be before closing_time")
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Clinic) error {
	existing, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = existing.Name
	}
	if c.SubscriptionPlan == "" {
		c.SubscriptionPlan = existing.SubscriptionPlan
	}
	if !validPlans[c.SubscriptionPlan] {
		return apperr.Validation("invalid subscription plan: %s", c.SubscriptionPlan)
	}
	if c.Status == "" {
		c.Status = existing.Status
	}
	if c.Status != StatusActive && c.Status != StatusInactive {
		return apperr.Validation("invalid status: %s", c.Status)
	}
	if c.OpeningTime == "" {
		c.OpeningTime = existing.OpeningTime
	}
	if c.ClosingTime == "" {
		c.ClosingTime = existing.ClosingTime
	}
	open, err := parseClock(c.OpeningTime)
	if err != nil {
		return apperr.Validation("invalid opening_time: %s", c.OpeningTime)
	}
	closeAt, err := parseClock(c.ClosingTime)
	if err != nil {
		return apperr.Validation("invalid closing_time: %s", c.ClosingTime)
	}
	if open >= closeAt {
		return apperr.Validation("opening_time must be before closing_time")
	}
	return s.repo.Update(ctx, c)
}

// Deactivate flips the clinic to inactive. Clinics with referential history
// are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == StatusInactive {
		return nil
	}
	c.Status = StatusInactive
	return s.repo.Update(ctx, c)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// OperatingWindow returns the clinic's opening and closing times as minutes
// since midnight. Slot computation subtracts bookings from this window.
func (s *Service) OperatingWindow(ctx context.Context, id uuid.UUID) (openMin, closeMin int, err error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	openMin, err = parseClock(c.OpeningTime)
	if err != nil {
		return 0, 0, err
	}
	closeMin, err = parseClock(c.ClosingTime)
	if err != nil {
		return 0, 0, err
	}
	return openMin, closeMin, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, apperr.Validation("malformed clock value: %s", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, apperr.Validation("malformed clock value: %s", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, apperr.Validation("malformed clock value: %s", v)
	}
	return h*60 + m, nil
}
