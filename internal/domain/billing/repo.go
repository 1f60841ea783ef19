package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentFilter narrows payment and receipt listings.
type PaymentFilter struct {
	PatientID *uuid.UUID
	InvoiceID *uuid.UUID
	Method    string
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoiceByID(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error)
	// GetInvoiceForUpdate locks the invoice row for the enclosing
	// transaction so concurrent payments serialize.
	GetInvoiceForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error)
	UpdateInvoicePayment(ctx context.Context, inv *Invoice) error
	ListInvoices(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, status string, limit, offset int) ([]*Invoice, int, error)
	// ListSettledInvoicesInRange returns Paid and Partial invoices with
	// their lines, bounded by invoice date.
	ListSettledInvoicesInRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Invoice, error)

	CreatePayment(ctx context.Context, p *Payment) error
	GetPaymentByID(ctx context.Context, clinicID, id uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Payment, int, error)

	CreateReceipt(ctx context.Context, r *Receipt) error
	GetReceiptByPayment(ctx context.Context, clinicID, paymentID uuid.UUID) (*Receipt, error)
	ListReceipts(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Receipt, int, error)

	CreateBankAccount(ctx context.Context, b *BankAccount) error
	ListBankAccounts(ctx context.Context, clinicID uuid.UUID) ([]*BankAccount, error)
	// SetDefaultBankAccount flips the default flag to exactly the given
	// account in one statement.
	SetDefaultBankAccount(ctx context.Context, clinicID, id uuid.UUID) error
	DeleteBankAccount(ctx context.Context, clinicID, id uuid.UUID) error

	// NextNumber increments and returns the per-clinic document counter for
	// kind ("invoice" or "receipt").
	NextNumber(ctx context.Context, clinicID uuid.UUID, kind string) (int, error)
}
