package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a dental supply tracked per clinic. CurrentQuantity is a cached
// projection of the transaction ledger, updated transactionally alongside
// each ledger entry, and never goes negative.
type Item struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ClinicID        uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	Name            string          `db:"name" json:"name"`
	Code            string          `db:"code" json:"code"`
	Category        string          `db:"category" json:"category"`
	Description     *string         `db:"description" json:"description,omitempty"`
	SupplierName    *string         `db:"supplier_name" json:"supplier_name,omitempty"`
	UnitOfMeasure   string          `db:"unit_of_measure" json:"unit_of_measure"`
	CurrentQuantity int             `db:"current_quantity" json:"current_quantity"`
	ReorderLevel    int             `db:"reorder_level" json:"reorder_level"`
	IdealQuantity   int             `db:"ideal_quantity" json:"ideal_quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	// Derived from quantity vs reorder/ideal levels, never stored.
	StockStatus string `db:"-" json:"stock_status,omitempty"`
}

const (
	StockOutOfStock  = "OutOfStock"
	StockLow         = "LowStock"
	StockAdequate    = "Adequate"
	StockWellStocked = "WellStocked"
)

// ComputeStockStatus derives the stock level band from the cached quantity.
func (i *Item) ComputeStockStatus() string {
	switch {
	case i.CurrentQuantity <= 0:
		return StockOutOfStock
	case i.CurrentQuantity <= i.ReorderLevel:
		return StockLow
	case i.IdealQuantity > 0 && i.CurrentQuantity >= i.IdealQuantity:
		return StockWellStocked
	default:
		return StockAdequate
	}
}

// Transaction is an immutable ledger entry. Quantity is signed: negative for
// consumption types, positive for purchases. The ledger is the source of
// truth for stock movement.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ClinicID    uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	ItemID      uuid.UUID       `db:"item_id" json:"item_id"`
	Type        string          `db:"type" json:"type"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	PerformedBy uuid.UUID       `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

const (
	TxnPurchase   = "Purchase"
	TxnUsage      = "Usage"
	TxnAdjustment = "Adjustment"
	TxnReturn     = "Return"
	TxnDisposal   = "Disposal"
	TxnTransfer   = "Transfer"
)

// consumptionTypes carry stock out of the clinic and must be non-positive.
var consumptionTypes = map[string]bool{
	TxnUsage: true, TxnReturn: true, TxnDisposal: true, TxnTransfer: true,
}

var validTxnTypes = map[string]bool{
	TxnPurchase: true, TxnUsage: true, TxnAdjustment: true,
	TxnReturn: true, TxnDisposal: true, TxnTransfer: true,
}

// Stats is the clinic-level inventory aggregate.
type Stats struct {
	TotalItems           int             `json:"total_items"`
	ActiveItems          int             `json:"active_items"`
	LowStockCount        int             `json:"low_stock_count"`
	OutOfStockCount      int             `json:"out_of_stock_count"`
	TotalValuation       decimal.Decimal `json:"total_valuation"`
	CategoryDistribution map[string]int  `json:"category_distribution"`
	RecentTransactions   []*Transaction  `json:"recent_transactions"`
}

// Filters narrows queryItems results.
type Filters struct {
	Category     string
	Active       *bool
	LowStock     bool
	ExpiringDays int
	Supplier     string
	Search       string
}
