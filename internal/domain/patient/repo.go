package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, clinicID uuid.UUID, query string, limit, offset int) ([]*Patient, int, error)
}
