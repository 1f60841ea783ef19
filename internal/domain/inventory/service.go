package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/domain/clinic"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// ClinicLookup resolves the clinic for low-stock alert recipients.
type ClinicLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error)
}

type Service struct {
	repo       Repository
	tx         db.TxRunner
	clinics    ClinicLookup
	dispatcher notification.Dispatcher
}

func NewService(repo Repository, tx db.TxRunner, clinics ClinicLookup, dispatcher notification.Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = notification.NopDispatcher{}
	}
	return &Service{repo: repo, tx: tx, clinics: clinics, dispatcher: dispatcher}
}

// categoryPrefixes maps inventory categories to item code prefixes.
var categoryPrefixes = map[string]string{
	"Consumables": "CON",
	"Endodontic":  "END",
	"Restorative": "RES",
	"Surgical":    "SUR",
	"Orthodontic": "ORT",
	"Implants":    "IMP",
	"Equipment":   "EQP",
	"Disposables": "DSP",
}

func codePrefix(category string) string {
	if p, ok := categoryPrefixes[category]; ok {
		return p
	}
	up := strings.ToUpper(category)
	if len(up) > 3 {
		up = up[:3]
	}
	return up
}

// CreateItem registers a new supply item. The item code is generated from a
// per-clinic-per-category counter, and a positive opening quantity is
// recorded as a Purchase ledger entry so replaying the ledger reproduces the
// cached quantity.
func (s *Service) CreateItem(ctx context.Context, clinicID, performedBy uuid.UUID, it *Item) error {
	it.ClinicID = clinicID
	if strings.TrimSpace(it.Name) == "" {
		return apperr.Validation("name is required")
	}
	if strings.TrimSpace(it.Category) == "" {
		return apperr.Validation("category is required")
	}
	if it.CurrentQuantity < 0 {
		return apperr.Validation("current_quantity cannot be negative")
	}
	if it.UnitCost.IsNegative() {
		return apperr.Validation("unit_cost cannot be negative")
	}
	if it.ReorderLevel < 0 || it.IdealQuantity < 0 {
		return apperr.Validation("reorder_level and ideal_quantity cannot be negative")
	}
	if it.UnitOfMeasure == "" {
		it.UnitOfMeasure = "unit"
	}
	it.IsActive = true

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		seq, err := s.repo.NextCodeSequence(ctx, clinicID, it.Category)
		if err != nil {
			return err
		}
		it.Code = fmt.Sprintf("%s-%s-%04d", codePrefix(it.Category), time.Now().Format("200601"), seq)

		if err := s.repo.CreateItem(ctx, it); err != nil {
			return err
		}
		if it.CurrentQuantity > 0 {
			return s.repo.CreateTransaction(ctx, &Transaction{
				ClinicID:    clinicID,
				ItemID:      it.ID,
				Type:        TxnPurchase,
				Quantity:    it.CurrentQuantity,
				UnitCost:    it.UnitCost,
				TotalCost:   it.UnitCost.Mul(decimal.NewFromInt(int64(it.CurrentQuantity))),
				PerformedBy: performedBy,
			})
		}
		return nil
	})
}

func (s *Service) GetItem(ctx context.Context, clinicID, id uuid.UUID) (*Item, error) {
	it, err := s.repo.GetItemByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	it.StockStatus = it.ComputeStockStatus()
	return it, nil
}

func (s *Service) UpdateItem(ctx context.Context, it *Item) error {
	existing, err := s.repo.GetItemByID(ctx, it.ClinicID, it.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(it.Name) == "" {
		it.Name = existing.Name
	}
	if it.Category == "" {
		it.Category = existing.Category
	}
	if it.UnitOfMeasure == "" {
		it.UnitOfMeasure = existing.UnitOfMeasure
	}
	if it.UnitCost.IsNegative() {
		return apperr.Validation("unit_cost cannot be negative")
	}
	if it.ReorderLevel < 0 || it.IdealQuantity < 0 {
		return apperr.Validation("reorder_level and ideal_quantity cannot be negative")
	}
	// Quantity and code only move through the ledger and code counter.
	it.Code = existing.Code
	it.CurrentQuantity = existing.CurrentQuantity
	it.IsActive = existing.IsActive
	return s.repo.UpdateItem(ctx, it)
}

func (s *Service) DeactivateItem(ctx context.Context, clinicID, id uuid.UUID) error {
	it, err := s.repo.GetItemByID(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if !it.IsActive {
		return nil
	}
	it.IsActive = false
	return s.repo.UpdateItem(ctx, it)
}

// RecordTransaction appends a ledger entry and moves the cached quantity.
// Consumption types must carry non-positive quantities. The cached quantity
// is clamped at zero; when clamping occurs the ledger keeps the true demand.
func (s *Service) RecordTransaction(ctx context.Context, clinicID, performedBy uuid.UUID, t *Transaction) error {
	if !validTxnTypes[t.Type] {
		return apperr.Validation("invalid transaction type: %s", t.Type)
	}
	if t.Quantity == 0 {
		return apperr.Validation("quantity cannot be zero")
	}
	if consumptionTypes[t.Type] && t.Quantity > 0 {
		return apperr.Validation("%s transactions must carry a non-positive quantity", t.Type)
	}
	if t.Type == TxnPurchase && t.Quantity < 0 {
		return apperr.Validation("Purchase transactions must carry a positive quantity")
	}

	it, err := s.repo.GetItemAnyClinic(ctx, t.ItemID)
	if err != nil {
		return err
	}
	if it.ClinicID != clinicID {
		return apperr.Forbidden("item belongs to another clinic")
	}

	t.ClinicID = clinicID
	t.PerformedBy = performedBy
	if t.UnitCost.IsZero() {
		t.UnitCost = it.UnitCost
	}
	t.TotalCost = t.UnitCost.Mul(decimal.NewFromInt(int64(abs(t.Quantity))))

	var after int
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		after, err = s.repo.AdjustQuantity(ctx, clinicID, t.ItemID, t.Quantity)
		if err != nil {
			return err
		}
		if t.Type == TxnPurchase && !t.UnitCost.Equal(it.UnitCost) {
			it.UnitCost = t.UnitCost
			if err := s.repo.UpdateItem(ctx, it); err != nil {
				return err
			}
		}
		return s.repo.CreateTransaction(ctx, t)
	})
	if err != nil {
		return err
	}

	if t.Quantity < 0 && after <= it.ReorderLevel {
		s.lowStockAlert(ctx, it, after)
	}
	return nil
}

// ConsumeStock atomically takes qty units for a procedure. Fails with
// InsufficientStock when not enough is on hand; the conditional decrement
// closes the read-then-write race between concurrent consumers.
func (s *Service) ConsumeStock(ctx context.Context, clinicID, itemID, performedBy uuid.UUID, qty int, reference string) (*Transaction, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	it, err := s.repo.GetItemByID(ctx, clinicID, itemID)
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		ClinicID:    clinicID,
		ItemID:      itemID,
		Type:        TxnUsage,
		Quantity:    -qty,
		UnitCost:    it.UnitCost,
		TotalCost:   it.UnitCost.Mul(decimal.NewFromInt(int64(qty))),
		Reference:   &reference,
		PerformedBy: performedBy,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.DecrementIfAvailable(ctx, clinicID, itemID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InsufficientStock("insufficient stock for %s: requested %d, available %d",
				it.Name, qty, it.CurrentQuantity)
		}
		return s.repo.CreateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	if after := it.CurrentQuantity - qty; after <= it.ReorderLevel {
		s.lowStockAlert(ctx, it, after)
	}
	return t, nil
}

// ReleaseStock undoes a reservation made by ConsumeStock when a later step
// of the same procedure fails. The compensation is recorded as a positive
// Adjustment so the ledger still replays to the cached quantity.
func (s *Service) ReleaseStock(ctx context.Context, clinicID, itemID, performedBy uuid.UUID, qty int, reference string) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive")
	}
	it, err := s.repo.GetItemByID(ctx, clinicID, itemID)
	if err != nil {
		return err
	}
	notes := "released reservation: " + reference
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.AdjustQuantity(ctx, clinicID, itemID, qty); err != nil {
			return err
		}
		return s.repo.CreateTransaction(ctx, &Transaction{
			ClinicID:    clinicID,
			ItemID:      itemID,
			Type:        TxnAdjustment,
			Quantity:    qty,
			UnitCost:    it.UnitCost,
			TotalCost:   it.UnitCost.Mul(decimal.NewFromInt(int64(qty))),
			Reference:   &reference,
			Notes:       &notes,
			PerformedBy: performedBy,
		})
	})
}

func (s *Service) QueryItems(ctx context.Context, clinicID uuid.UUID, f Filters, limit, offset int) ([]*Item, int, error) {
	items, total, err := s.repo.QueryItems(ctx, clinicID, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, it := range items {
		it.StockStatus = it.ComputeStockStatus()
	}
	return items, total, nil
}

func (s *Service) ListTransactions(ctx context.Context, clinicID uuid.UUID, itemID *uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	return s.repo.ListTransactions(ctx, clinicID, itemID, limit, offset)
}

// Stats returns the clinic inventory aggregate with the five most recent
// ledger entries attached.
func (s *Service) Stats(ctx context.Context, clinicID uuid.UUID) (*Stats, error) {
	st, err := s.repo.Stats(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentTransactions(ctx, clinicID, 5)
	if err != nil {
		return nil, err
	}
	st.RecentTransactions = recent
	return st, nil
}

func (s *Service) lowStockAlert(ctx context.Context, it *Item, qty int) {
	recipient := ""
	if s.clinics != nil {
		if cl, err := s.clinics.Get(ctx, it.ClinicID); err == nil && cl.Email != nil {
			recipient = *cl.Email
		}
	}
	s.dispatcher.Dispatch(ctx, "low-stock-alert", map[string]string{
		"item_name":     it.Name,
		"item_code":     it.Code,
		"quantity":      strconv.Itoa(qty),
		"unit":          it.UnitOfMeasure,
		"reorder_level": strconv.Itoa(it.ReorderLevel),
	}, recipient)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
