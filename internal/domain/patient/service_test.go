package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient not found")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) List(_ context.Context, clinicID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if p.ClinicID == clinicID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) Search(_ context.Context, clinicID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if p.ClinicID != clinicID {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			result = append(result, p)
			continue
		}
		if p.Phone != nil && strings.Contains(*p.Phone, query) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

// -- Tests --

func TestCreatePatient_ScopedToClinic(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	clinicID := uuid.New()

	p := &Patient{Name: "Asha", ClinicID: uuid.New()}
	if err := svc.Create(context.Background(), clinicID, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Caller-supplied clinic id is overwritten by the principal's.
	if p.ClinicID != clinicID {
		t.Errorf("expected clinic %s, got %s", clinicID, p.ClinicID)
	}
	if !p.IsActive {
		t.Error("expected new patient active")
	}
}

func TestCreatePatient_NameRequired(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.Create(context.Background(), uuid.New(), &Patient{Name: " "})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePatient_FutureDOBRejected(t *testing.T) {
	svc := NewService(newMockRepo())
	dob := time.Now().Add(24 * time.Hour)
	err := svc.Create(context.Background(), uuid.New(), &Patient{Name: "Asha", DateOfBirth: &dob})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetPatient_CrossClinicNotFound(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	clinicA := uuid.New()

	p := &Patient{Name: "Asha"}
	if err := svc.Create(context.Background(), clinicA, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.Get(context.Background(), uuid.New(), p.ID)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPatients_SearchByNameOrPhone(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	clinicID := uuid.New()

	phone := "9876543210"
	for _, p := range []*Patient{
		{Name: "Asha Verma", Phone: &phone},
		{Name: "Rohan Gupta"},
	} {
		if err := svc.Create(context.Background(), clinicID, p); err != nil {
			t.Fatalf("create %s: %v", p.Name, err)
		}
	}

	byName, total, err := svc.List(context.Background(), clinicID, "asha", 20, 0)
	if err != nil {
		t.Fatalf("search by name: %v", err)
	}
	if total != 1 || byName[0].Name != "Asha Verma" {
		t.Errorf("expected Asha Verma, got %d results", total)
	}

	byPhone, total, err := svc.List(context.Background(), clinicID, "98765", 20, 0)
	if err != nil {
		t.Fatalf("search by phone: %v", err)
	}
	if total != 1 || byPhone[0].Name != "Asha Verma" {
		t.Errorf("expected phone match, got %d results", total)
	}
}

func TestDeactivatePatient_SoftDelete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	clinicID := uuid.New()

	p := &Patient{Name: "Asha"}
	if err := svc.Create(context.Background(), clinicID, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(context.Background(), clinicID, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := svc.Get(context.Background(), clinicID, p.ID)
	if err != nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if got.IsActive {
		t.Error("expected patient inactive, record still present")
	}
}
