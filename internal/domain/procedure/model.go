package procedure

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DentalProcedure is a clinical procedure with the inventory it consumed.
// Line items snapshot the unit cost at consumption time, so later price
// changes never alter a recorded procedure's cost.
type DentalProcedure struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	ClinicID           uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	PatientID          uuid.UUID       `db:"patient_id" json:"patient_id"`
	DentistID          uuid.UUID       `db:"dentist_id" json:"dentist_id"`
	Name               string          `db:"name" json:"name"`
	Category           string          `db:"category" json:"category"`
	ToothNumber        *string         `db:"tooth_number" json:"tooth_number,omitempty"`
	Status             string          `db:"status" json:"status"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	ProcedureDate      time.Time       `db:"procedure_date" json:"procedure_date"`
	Items              []ProcedureItem `db:"-" json:"items"`
	TotalInventoryCost decimal.Decimal `db:"total_inventory_cost" json:"total_inventory_cost"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	StatusPlanned    = "Planned"
	StatusInProgress = "InProgress"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

var validStatuses = map[string]bool{
	StatusPlanned: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true,
}

// ProcedureItem is a consumption snapshot line.
type ProcedureItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ProcedureID uuid.UUID       `db:"procedure_id" json:"procedure_id"`
	ItemID      uuid.UUID       `db:"item_id" json:"item_id"`
	ItemName    string          `db:"item_name" json:"item_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
}

// RecomputeTotal rederives the aggregate cost from the line items. Called
// before every save so the stored total can never drift from the lines.
func (p *DentalProcedure) RecomputeTotal() {
	total := decimal.Zero
	for _, li := range p.Items {
		total = total.Add(li.TotalCost)
	}
	p.TotalInventoryCost = total
}

// ItemRequest is a requested consumption line on create/add.
type ItemRequest struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}
