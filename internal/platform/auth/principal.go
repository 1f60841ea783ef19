package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller every operation is scoped to. The
// ClinicID is authoritative for tenant scoping: request payloads are never
// trusted for it.
type Principal struct {
	UserID   uuid.UUID
	ClinicID uuid.UUID
	Role     Role
}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal set by the auth middleware.
// The zero Principal is returned when none is present.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}
