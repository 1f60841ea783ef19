package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice aggregates billable lines with their GST breakdown. PaidAmount and
// Status are maintained by payment processing and never exceed Total.
type Invoice struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ClinicID          uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	PatientID         uuid.UUID       `db:"patient_id" json:"patient_id"`
	InvoiceNumber     string          `db:"invoice_number" json:"invoice_number"`
	InvoiceDate       time.Time       `db:"invoice_date" json:"invoice_date"`
	Status            string          `db:"status" json:"status"`
	InterState        bool            `db:"inter_state" json:"inter_state"`
	Total             decimal.Decimal `db:"total" json:"total"`
	PaidAmount        decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	TotalTaxableValue decimal.Decimal `db:"total_taxable_value" json:"total_taxable_value"`
	TotalCGST         decimal.Decimal `db:"total_cgst" json:"total_cgst"`
	TotalSGST         decimal.Decimal `db:"total_sgst" json:"total_sgst"`
	TotalIGST         decimal.Decimal `db:"total_igst" json:"total_igst"`
	TotalGST          decimal.Decimal `db:"total_gst" json:"total_gst"`
	Notes             *string         `db:"notes" json:"notes,omitempty"`
	Lines             []InvoiceLine   `db:"-" json:"lines"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	StatusUnpaid  = "Unpaid"
	StatusPartial = "Partial"
	StatusPaid    = "Paid"
)

// DeriveStatus keeps Status consistent with PaidAmount vs Total.
func (inv *Invoice) DeriveStatus() {
	switch {
	case inv.PaidAmount.GreaterThanOrEqual(inv.Total) && inv.Total.IsPositive():
		inv.Status = StatusPaid
	case inv.PaidAmount.IsPositive():
		inv.Status = StatusPartial
	default:
		inv.Status = StatusUnpaid
	}
}

// Balance is the amount still owed.
func (inv *Invoice) Balance() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

// InvoiceLine is one billed service with its tax split.
type InvoiceLine struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	InvoiceID    uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Description  string          `db:"description" json:"description"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	TaxableValue decimal.Decimal `db:"taxable_value" json:"taxable_value"`
	GSTRate      decimal.Decimal `db:"gst_rate" json:"gst_rate"`
	CGST         decimal.Decimal `db:"cgst" json:"cgst"`
	SGST         decimal.Decimal `db:"sgst" json:"sgst"`
	IGST         decimal.Decimal `db:"igst" json:"igst"`
	Total        decimal.Decimal `db:"total" json:"total"`
}

// Payment is an append-only ledger entry against an invoice. Its GST fields
// are the invoice totals pro-rated by amount/total.
type Payment struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ClinicID     uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	InvoiceID    uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	PatientID    uuid.UUID       `db:"patient_id" json:"patient_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Method       string          `db:"method" json:"method"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	TaxableValue decimal.Decimal `db:"taxable_value" json:"taxable_value"`
	CGST         decimal.Decimal `db:"cgst" json:"cgst"`
	SGST         decimal.Decimal `db:"sgst" json:"sgst"`
	IGST         decimal.Decimal `db:"igst" json:"igst"`
	TotalGST     decimal.Decimal `db:"total_gst" json:"total_gst"`
	PaymentDate  time.Time       `db:"payment_date" json:"payment_date"`
	ReceivedBy   uuid.UUID       `db:"received_by" json:"received_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

var validMethods = map[string]bool{
	"cash": true, "card": true, "upi": true, "netbanking": true, "cheque": true,
}

// Receipt is the 1:1 artifact of a completed payment.
type Receipt struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ClinicID      uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	PaymentID     uuid.UUID       `db:"payment_id" json:"payment_id"`
	InvoiceID     uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	ReceiptNumber string          `db:"receipt_number" json:"receipt_number"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// BankAccount is a clinic settlement account. At most one per clinic is the
// default, enforced in a single statement on switch.
type BankAccount struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ClinicID      uuid.UUID `db:"clinic_id" json:"clinic_id"`
	BankName      string    `db:"bank_name" json:"bank_name"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	IFSC          *string   `db:"ifsc" json:"ifsc,omitempty"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RateBreakup is one row of the GST report's rate-wise table.
type RateBreakup struct {
	Rate         decimal.Decimal `json:"rate"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	CGST         decimal.Decimal `json:"cgst"`
	SGST         decimal.Decimal `json:"sgst"`
	IGST         decimal.Decimal `json:"igst"`
	TotalGST     decimal.Decimal `json:"total_gst"`
}

// GSTReport sums tax across Paid and Partial invoices in a date range.
type GSTReport struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Invoices          int             `json:"invoices"`
	TotalTaxableValue decimal.Decimal `json:"total_taxable_value"`
	TotalCGST         decimal.Decimal `json:"total_cgst"`
	TotalSGST         decimal.Decimal `json:"total_sgst"`
	TotalIGST         decimal.Decimal `json:"total_igst"`
	TotalGST          decimal.Decimal `json:"total_gst"`
	RateBreakup       []RateBreakup   `json:"rate_breakup"`
}
