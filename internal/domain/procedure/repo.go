package procedure

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *DentalProcedure) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*DentalProcedure, error)
	Update(ctx context.Context, p *DentalProcedure) error
	AddItems(ctx context.Context, procedureID uuid.UUID, items []ProcedureItem) error
	List(ctx context.Context, clinicID uuid.UUID, patientID, dentistID *uuid.UUID, limit, offset int) ([]*DentalProcedure, int, error)
	// ListInRange returns procedures with their items, bounded by procedure
	// date, optionally narrowed to one category. Used by the usage reports.
	ListInRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time, category string) ([]*DentalProcedure, error)
}
