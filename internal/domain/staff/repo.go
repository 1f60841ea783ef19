package staff

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, st *Staff) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error)
	GetByEmail(ctx context.Context, clinicID uuid.UUID, email string) (*Staff, error)
	Update(ctx context.Context, st *Staff) error
	ListByClinic(ctx context.Context, clinicID uuid.UUID, role auth.Role, limit, offset int) ([]*Staff, int, error)
	ListPending(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Staff, int, error)
}
