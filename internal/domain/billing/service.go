package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/domain/patient"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// PatientLookup resolves patients for invoice validation and receipts.
type PatientLookup interface {
	Get(ctx context.Context, clinicID, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo       Repository
	tx         db.TxRunner
	patients   PatientLookup
	dispatcher notification.Dispatcher
	gstRate    decimal.Decimal
}

// NewService wires the billing service. gstRate is the default percentage
// applied to lines that carry no explicit rate.
func NewService(repo Repository, tx db.TxRunner, patients PatientLookup, dispatcher notification.Dispatcher, gstRate decimal.Decimal) *Service {
	if dispatcher == nil {
		dispatcher = notification.NopDispatcher{}
	}
	return &Service{repo: repo, tx: tx, patients: patients, dispatcher: dispatcher, gstRate: gstRate}
}

var two = decimal.NewFromInt(2)
var hundred = decimal.NewFromInt(100)

// CreateInvoice computes per-line tax, sums the invoice totals, assigns the
// next invoice number and persists everything in one transaction. Intra-state
// invoices split GST evenly between CGST and SGST; inter-state invoices carry
// the full tax as IGST.
func (s *Service) CreateInvoice(ctx context.Context, clinicID uuid.UUID, inv *Invoice) error {
	inv.ClinicID = clinicID
	if inv.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if len(inv.Lines) == 0 {
		return apperr.Validation("invoice needs at least one line")
	}
	if s.patients != nil {
		if _, err := s.patients.Get(ctx, clinicID, inv.PatientID); err != nil {
			return err
		}
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = time.Now()
	}

	inv.Total = decimal.Zero
	inv.TotalTaxableValue = decimal.Zero
	inv.TotalCGST = decimal.Zero
	inv.TotalSGST = decimal.Zero
	inv.TotalIGST = decimal.Zero
	inv.TotalGST = decimal.Zero

	for i := range inv.Lines {
		li := &inv.Lines[i]
		if li.Description == "" {
			return apperr.Validation("line %d: description is required", i+1)
		}
		if li.Quantity <= 0 {
			return apperr.Validation("line %d: quantity must be positive", i+1)
		}
		if li.UnitPrice.IsNegative() {
			return apperr.Validation("line %d: unit price cannot be negative", i+1)
		}
		if li.GSTRate.IsNegative() {
			return apperr.Validation("line %d: gst rate cannot be negative", i+1)
		}
		if li.GSTRate.IsZero() {
			li.GSTRate = s.gstRate
		}

		li.TaxableValue = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
		gst := li.TaxableValue.Mul(li.GSTRate).Div(hundred).Round(2)
		if inv.InterState {
			li.IGST = gst
			li.CGST = decimal.Zero
			li.SGST = decimal.Zero
		} else {
			li.CGST = gst.Div(two).Round(2)
			li.SGST = li.CGST
			li.IGST = decimal.Zero
		}
		li.Total = li.TaxableValue.Add(li.CGST).Add(li.SGST).Add(li.IGST)

		inv.TotalTaxableValue = inv.TotalTaxableValue.Add(li.TaxableValue)
		inv.TotalCGST = inv.TotalCGST.Add(li.CGST)
		inv.TotalSGST = inv.TotalSGST.Add(li.SGST)
		inv.TotalIGST = inv.TotalIGST.Add(li.IGST)
		inv.Total = inv.Total.Add(li.Total)
	}
	inv.TotalGST = inv.TotalCGST.Add(inv.TotalSGST).Add(inv.TotalIGST)
	inv.PaidAmount = decimal.Zero
	inv.DeriveStatus()

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		seq, err := s.repo.NextNumber(ctx, clinicID, "invoice")
		if err != nil {
			return err
		}
		inv.InvoiceNumber = fmt.Sprintf("INV-%s-%04d", inv.InvoiceDate.Format("200601"), seq)
		return s.repo.CreateInvoice(ctx, inv)
	})
}

func (s *Service) GetInvoice(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoiceByID(ctx, clinicID, id)
}

func (s *Service) ListInvoices(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, status string, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListInvoices(ctx, clinicID, patientID, status, limit, offset)
}

// ProcessPayment records a payment against an invoice, updates the invoice
// balance and cuts a receipt, all inside one transaction with the invoice row
// locked. The payment inherits the invoice's tax pro-rated by amount/total, so
// summing payments reproduces the invoice's GST once it is fully paid.
func (s *Service) ProcessPayment(ctx context.Context, clinicID uuid.UUID, p *Payment) (*Payment, error) {
	if p.InvoiceID == uuid.Nil {
		return nil, apperr.Validation("invoice_id is required")
	}
	if !p.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if !validMethods[p.Method] {
		return nil, apperr.Validation("unknown payment method %q", p.Method)
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}

	var (
		rc  *Receipt
		inv *Invoice
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetInvoiceForUpdate(ctx, clinicID, p.InvoiceID)
		if err != nil {
			return err
		}
		if p.Amount.GreaterThan(inv.Balance()) {
			return apperr.Validation("amount %s exceeds outstanding balance %s",
				p.Amount.StringFixed(2), inv.Balance().StringFixed(2))
		}

		factor := p.Amount.Div(inv.Total)
		p.ClinicID = clinicID
		p.PatientID = inv.PatientID
		p.TaxableValue = inv.TotalTaxableValue.Mul(factor).Round(2)
		p.CGST = inv.TotalCGST.Mul(factor).Round(2)
		p.SGST = inv.TotalSGST.Mul(factor).Round(2)
		p.IGST = inv.TotalIGST.Mul(factor).Round(2)
		p.TotalGST = p.CGST.Add(p.SGST).Add(p.IGST)
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return err
		}

		inv.PaidAmount = inv.PaidAmount.Add(p.Amount)
		inv.DeriveStatus()
		if err := s.repo.UpdateInvoicePayment(ctx, inv); err != nil {
			return err
		}

		rc, err = s.cutReceipt(ctx, inv, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyReceipt(ctx, inv, p, rc)
	return p, nil
}

func (s *Service) cutReceipt(ctx context.Context, inv *Invoice, p *Payment) (*Receipt, error) {
	seq, err := s.repo.NextNumber(ctx, p.ClinicID, "receipt")
	if err != nil {
		return nil, err
	}
	rc := &Receipt{
		ClinicID:      p.ClinicID,
		PaymentID:     p.ID,
		InvoiceID:     inv.ID,
		PatientID:     inv.PatientID,
		ReceiptNumber: fmt.Sprintf("RCPT-%s-%04d", p.PaymentDate.Format("200601"), seq),
		Amount:        p.Amount,
	}
	return rc, s.repo.CreateReceipt(ctx, rc)
}

func (s *Service) notifyReceipt(ctx context.Context, inv *Invoice, p *Payment, rc *Receipt) {
	data := map[string]string{
		"receipt_number": rc.ReceiptNumber,
		"invoice_number": inv.InvoiceNumber,
		"amount":         p.Amount.StringFixed(2),
	}
	recipient := ""
	if s.patients != nil {
		pt, err := s.patients.Get(ctx, p.ClinicID, p.PatientID)
		if err == nil {
			data["patient_name"] = pt.Name
			if pt.Email != nil {
				recipient = *pt.Email
			}
		}
	}
	if recipient == "" {
		return
	}
	s.dispatcher.Dispatch(ctx, "payment-receipt", data, recipient)
}

func (s *Service) GetPayment(ctx context.Context, clinicID, id uuid.UUID) (*Payment, error) {
	return s.repo.GetPaymentByID(ctx, clinicID, id)
}

func (s *Service) ListPayments(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Payment, int, error) {
	return s.repo.ListPayments(ctx, clinicID, f, limit, offset)
}

// GetReceiptForPayment returns the payment's receipt, creating one on the fly
// for payments recorded before receipts existed.
func (s *Service) GetReceiptForPayment(ctx context.Context, clinicID, paymentID uuid.UUID) (*Receipt, error) {
	rc, err := s.repo.GetReceiptByPayment(ctx, clinicID, paymentID)
	if err == nil {
		return rc, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	p, err := s.repo.GetPaymentByID(ctx, clinicID, paymentID)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.GetInvoiceByID(ctx, clinicID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		rc, err = s.cutReceipt(ctx, inv, p)
		return err
	})
	return rc, err
}

func (s *Service) ListReceipts(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Receipt, int, error) {
	return s.repo.ListReceipts(ctx, clinicID, f, limit, offset)
}

// GenerateGSTReport sums tax over Paid and Partial invoices in [from, to) and
// breaks it up rate-wise from the invoice lines.
func (s *Service) GenerateGSTReport(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (*GSTReport, error) {
	if !from.Before(to) {
		return nil, apperr.Validation("from must precede to")
	}
	invs, err := s.repo.ListSettledInvoicesInRange(ctx, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	if len(invs) == 0 {
		return nil, apperr.NotFound("no settled invoices between %s and %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	rep := &GSTReport{From: from, To: to, Invoices: len(invs)}
	byRate := make(map[string]*RateBreakup)
	for _, inv := range invs {
		rep.TotalTaxableValue = rep.TotalTaxableValue.Add(inv.TotalTaxableValue)
		rep.TotalCGST = rep.TotalCGST.Add(inv.TotalCGST)
		rep.TotalSGST = rep.TotalSGST.Add(inv.TotalSGST)
		rep.TotalIGST = rep.TotalIGST.Add(inv.TotalIGST)
		rep.TotalGST = rep.TotalGST.Add(inv.TotalGST)
		for _, li := range inv.Lines {
			key := li.GSTRate.String()
			rb, ok := byRate[key]
			if !ok {
				rb = &RateBreakup{Rate: li.GSTRate}
				byRate[key] = rb
			}
			rb.TaxableValue = rb.TaxableValue.Add(li.TaxableValue)
			rb.CGST = rb.CGST.Add(li.CGST)
			rb.SGST = rb.SGST.Add(li.SGST)
			rb.IGST = rb.IGST.Add(li.IGST)
			rb.TotalGST = rb.TotalGST.Add(li.CGST).Add(li.SGST).Add(li.IGST)
		}
	}

	for _, rb := range byRate {
		rep.RateBreakup = append(rep.RateBreakup, *rb)
	}
	sort.Slice(rep.RateBreakup, func(i, j int) bool {
		return rep.RateBreakup[i].Rate.LessThan(rep.RateBreakup[j].Rate)
	})
	return rep, nil
}

func (s *Service) CreateBankAccount(ctx context.Context, clinicID uuid.UUID, b *BankAccount) error {
	b.ClinicID = clinicID
	if b.BankName == "" {
		return apperr.Validation("bank_name is required")
	}
	if b.AccountNumber == "" {
		return apperr.Validation("account_number is required")
	}
	existing, err := s.repo.ListBankAccounts(ctx, clinicID)
	if err != nil {
		return err
	}
	// The first account a clinic registers becomes its default.
	if len(existing) == 0 {
		b.IsDefault = true
	}
	if err := s.repo.CreateBankAccount(ctx, b); err != nil {
		return err
	}
	if b.IsDefault {
		return s.repo.SetDefaultBankAccount(ctx, clinicID, b.ID)
	}
	return nil
}

func (s *Service) ListBankAccounts(ctx context.Context, clinicID uuid.UUID) ([]*BankAccount, error) {
	return s.repo.ListBankAccounts(ctx, clinicID)
}

func (s *Service) SetDefaultBankAccount(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.repo.SetDefaultBankAccount(ctx, clinicID, id)
}

func (s *Service) DeleteBankAccount(ctx context.Context, clinicID, id uuid.UUID) error {
	accounts, err := s.repo.ListBankAccounts(ctx, clinicID)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.ID == id && a.IsDefault && len(accounts) > 1 {
			return apperr.Conflict("cannot delete the default bank account, set another default first")
		}
	}
	return s.repo.DeleteBankAccount(ctx, clinicID, id)
}
