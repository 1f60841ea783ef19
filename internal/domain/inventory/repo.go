package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateItem(ctx context.Context, it *Item) error
	GetItemByID(ctx context.Context, clinicID, id uuid.UUID) (*Item, error)
	// GetItemAnyClinic looks an item up without tenant filtering, so the
	// caller can distinguish a missing item from a foreign one.
	GetItemAnyClinic(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	QueryItems(ctx context.Context, clinicID uuid.UUID, f Filters, limit, offset int) ([]*Item, int, error)

	// AdjustQuantity applies a signed delta to the cached quantity, clamped
	// at a floor of zero. Returns the quantity after the update.
	AdjustQuantity(ctx context.Context, clinicID, itemID uuid.UUID, delta int) (int, error)
	// DecrementIfAvailable atomically decrements only when enough stock is
	// on hand. Reports whether the decrement was applied.
	DecrementIfAvailable(ctx context.Context, clinicID, itemID uuid.UUID, qty int) (bool, error)

	CreateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, clinicID uuid.UUID, itemID *uuid.UUID, limit, offset int) ([]*Transaction, int, error)
	RecentTransactions(ctx context.Context, clinicID uuid.UUID, n int) ([]*Transaction, error)

	// NextCodeSequence increments and returns the per-clinic-per-category
	// item code counter.
	NextCodeSequence(ctx context.Context, clinicID uuid.UUID, category string) (int, error)

	Stats(ctx context.Context, clinicID uuid.UUID) (*Stats, error)
}
