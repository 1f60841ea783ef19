package procedure

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/inventory"
	"github.com/clinicore/clinicore/internal/platform/apperr"
)

// Inventory is the stock surface the engine consumes. Satisfied by
// *inventory.Service.
type Inventory interface {
	GetItem(ctx context.Context, clinicID, id uuid.UUID) (*inventory.Item, error)
	ConsumeStock(ctx context.Context, clinicID, itemID, performedBy uuid.UUID, qty int, reference string) (*inventory.Transaction, error)
	ReleaseStock(ctx context.Context, clinicID, itemID, performedBy uuid.UUID, qty int, reference string) error
	QueryItems(ctx context.Context, clinicID uuid.UUID, f inventory.Filters, limit, offset int) ([]*inventory.Item, int, error)
}

type Service struct {
	repo  Repository
	stock Inventory
}

func NewService(repo Repository, stock Inventory) *Service {
	return &Service{repo: repo, stock: stock}
}

// Create records a procedure and consumes its inventory. Consumption is a
// reserve-then-commit sequence: every line is reserved with an atomic
// conditional decrement, and if any line or the final save fails, the
// reservations already taken are released again. Either the whole procedure
// commits or stock is left untouched.
func (s *Service) Create(ctx context.Context, clinicID, actorID uuid.UUID, p *DentalProcedure, requests []ItemRequest) error {
	p.ClinicID = clinicID
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("name is required")
	}
	if p.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if p.DentistID == uuid.Nil {
		return apperr.Validation("dentist_id is required")
	}
	if p.Category == "" {
		p.Category = "General"
	}
	if p.Status == "" {
		p.Status = StatusCompleted
	}
	if !validStatuses[p.Status] {
		return apperr.Validation("invalid status: %s", p.Status)
	}
	if p.ProcedureDate.IsZero() {
		p.ProcedureDate = time.Now()
	}

	lines, err := s.reserve(ctx, clinicID, actorID, p.Name, requests)
	if err != nil {
		return err
	}

	p.Items = lines
	p.RecomputeTotal()
	if err := s.repo.Create(ctx, p); err != nil {
		s.release(ctx, clinicID, actorID, p.Name, lines)
		return err
	}
	return nil
}

// AddItems consumes additional inventory for an existing procedure under the
// same reserve-then-commit protocol and recomputes the aggregate cost.
func (s *Service) AddItems(ctx context.Context, clinicID, actorID, procedureID uuid.UUID, requests []ItemRequest) (*DentalProcedure, error) {
	p, err := s.repo.GetByID(ctx, clinicID, procedureID)
	if err != nil {
		return nil, err
	}

	lines, err := s.reserve(ctx, clinicID, actorID, p.Name, requests)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddItems(ctx, p.ID, lines); err != nil {
		s.release(ctx, clinicID, actorID, p.Name, lines)
		return nil, err
	}
	p.Items = append(p.Items, lines...)
	p.RecomputeTotal()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// reserve consumes every requested line, releasing earlier lines if a later
// one fails.
func (s *Service) reserve(ctx context.Context, clinicID, actorID uuid.UUID, reference string, requests []ItemRequest) ([]ProcedureItem, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	for _, req := range requests {
		if req.ItemID == uuid.Nil {
			return nil, apperr.Validation("item_id is required on every line")
		}
		if req.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive")
		}
	}

	var lines []ProcedureItem
	for _, req := range requests {
		it, err := s.stock.GetItem(ctx, clinicID, req.ItemID)
		if err != nil {
			s.release(ctx, clinicID, actorID, reference, lines)
			return nil, err
		}
		txn, err := s.stock.ConsumeStock(ctx, clinicID, req.ItemID, actorID, req.Quantity, reference)
		if err != nil {
			s.release(ctx, clinicID, actorID, reference, lines)
			return nil, err
		}
		lines = append(lines, ProcedureItem{
			ItemID:    req.ItemID,
			ItemName:  it.Name,
			Quantity:  req.Quantity,
			UnitCost:  txn.UnitCost,
			TotalCost: txn.TotalCost,
		})
	}
	return lines, nil
}

func (s *Service) release(ctx context.Context, clinicID, actorID uuid.UUID, reference string, lines []ProcedureItem) {
	for _, li := range lines {
		// Best effort: a failed release leaves the ledger to reconcile.
		_ = s.stock.ReleaseStock(ctx, clinicID, li.ItemID, actorID, li.Quantity, reference)
	}
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*DentalProcedure, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status string, notes *string) (*DentalProcedure, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if notes != nil {
		p.Notes = notes
	}
	p.RecomputeTotal()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, patientID, dentistID *uuid.UUID, limit, offset int) ([]*DentalProcedure, int, error) {
	return s.repo.List(ctx, clinicID, patientID, dentistID, limit, offset)
}
