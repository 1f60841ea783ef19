package clinic

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	clinics map[uuid.UUID]*Clinic
}

func newMockRepo() *mockRepo {
	return &mockRepo{clinics: make(map[uuid.UUID]*Clinic)}
}

func (m *mockRepo) Create(_ context.Context, c *Clinic) error {
	c.ID = uuid.New()
	m.clinics[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, apperr.NotFound("clinic not found")
	}
	return c, nil
}

func (m *mockRepo) Update(_ context.Context, c *Clinic) error {
	if _, ok := m.clinics[c.ID]; !ok {
		return apperr.NotFound("clinic not found")
	}
	m.clinics[c.ID] = c
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Clinic, int, error) {
	var result []*Clinic
	for _, c := range m.clinics {
		result = append(result, c)
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// -- Tests --

func TestCreateClinic_Defaults(t *testing.T) {
	svc := NewService(newMockRepo())
	c := &Clinic{Name: "Smile Dental"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != StatusActive {
		t.Errorf("expected active status, got %q", c.Status)
	}
	if c.SubscriptionPlan != "free" {
		t.Errorf("expected free plan, got %q", c.SubscriptionPlan)
	}
	if c.OpeningTime != "09:00" || c.ClosingTime != "18:00" {
		t.Errorf("expected default operating window, got %s-%s", c.OpeningTime, c.ClosingTime)
	}
}

func TestCreateClinic_NameRequired(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Create(context.Background(), &Clinic{Name: "  "})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateClinic_InvertedWindow(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Create(context.Background(), &Clinic{
		Name: "Night Clinic", OpeningTime: "20:00", ClosingTime: "08:00",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateClinic_MalformedClock(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Create(context.Background(), &Clinic{Name: "X", OpeningTime: "9am"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeactivateClinic_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	c := &Clinic{Name: "Smile Dental"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(context.Background(), c.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if repo.clinics[c.ID].Status != StatusInactive {
		t.Errorf("expected inactive, got %q", repo.clinics[c.ID].Status)
	}
	// Second call is a no-op.
	if err := svc.Deactivate(context.Background(), c.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
}

func TestOperatingWindow(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	c := &Clinic{Name: "Smile Dental", OpeningTime: "08:30", ClosingTime: "17:00"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}

	open, closeAt, err := svc.OperatingWindow(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("operating window: %v", err)
	}
	if open != 8*60+30 || closeAt != 17*60 {
		t.Errorf("expected 510/1020, got %d/%d", open, closeAt)
	}
}

func TestUpdateClinic_PreservesUnsetFields(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	c := &Clinic{Name: "Smile Dental", SubscriptionPlan: "premium"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}

	upd := &Clinic{ID: c.ID, Name: "Smile Dental Care"}
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.SubscriptionPlan != "premium" {
		t.Errorf("expected plan preserved, got %q", upd.SubscriptionPlan)
	}
	if upd.OpeningTime != "09:00" {
		t.Errorf("expected opening time preserved, got %q", upd.OpeningTime)
	}
}
