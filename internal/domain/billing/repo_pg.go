package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const invoiceCols = `id, clinic_id, patient_id, invoice_number, invoice_date, status,
	inter_state, total, paid_amount, total_taxable_value, total_cgst, total_sgst,
	total_igst, total_gst, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.ClinicID, &inv.PatientID, &inv.InvoiceNumber,
		&inv.InvoiceDate, &inv.Status, &inv.InterState, &inv.Total, &inv.PaidAmount,
		&inv.TotalTaxableValue, &inv.TotalCGST, &inv.TotalSGST, &inv.TotalIGST,
		&inv.TotalGST, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invoice not found")
	}
	return &inv, err
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice (id, clinic_id, patient_id, invoice_number, invoice_date,
			status, inter_state, total, paid_amount, total_taxable_value, total_cgst,
			total_sgst, total_igst, total_gst, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		inv.ID, inv.ClinicID, inv.PatientID, inv.InvoiceNumber, inv.InvoiceDate,
		inv.Status, inv.InterState, inv.Total, inv.PaidAmount, inv.TotalTaxableValue,
		inv.TotalCGST, inv.TotalSGST, inv.TotalIGST, inv.TotalGST, inv.Notes)
	if err != nil {
		return err
	}
	for i := range inv.Lines {
		inv.Lines[i].ID = uuid.New()
		inv.Lines[i].InvoiceID = inv.ID
		li := &inv.Lines[i]
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO invoice_line (id, invoice_id, description, quantity, unit_price,
				taxable_value, gst_rate, cgst, sgst, igst, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			li.ID, li.InvoiceID, li.Description, li.Quantity, li.UnitPrice,
			li.TaxableValue, li.GSTRate, li.CGST, li.SGST, li.IGST, li.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetInvoiceByID(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return inv, r.attachLines(ctx, []*Invoice{inv})
}

func (r *repoPG) GetInvoiceForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1 AND clinic_id = $2 FOR UPDATE`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return inv, r.attachLines(ctx, []*Invoice{inv})
}

func (r *repoPG) UpdateInvoicePayment(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET paid_amount = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2`,
		inv.ID, inv.ClinicID, inv.PaidAmount, inv.Status)
	return err
}

func (r *repoPG) ListInvoices(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, status string, limit, offset int) ([]*Invoice, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if patientID != nil {
		args = append(args, *patientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoice `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoice `+where+
			` ORDER BY invoice_date DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invs, err := collectInvoices(rows)
	if err != nil {
		return nil, 0, err
	}
	return invs, total, r.attachLines(ctx, invs)
}

func (r *repoPG) ListSettledInvoicesInRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoice
		 WHERE clinic_id = $1 AND status IN ($2, $3)
		   AND invoice_date >= $4 AND invoice_date < $5
		 ORDER BY invoice_date`,
		clinicID, StatusPaid, StatusPartial, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invs, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	return invs, r.attachLines(ctx, invs)
}

func collectInvoices(rows pgx.Rows) ([]*Invoice, error) {
	var invs []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (r *repoPG) attachLines(ctx context.Context, invs []*Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(invs))
	byID := make(map[uuid.UUID]*Invoice, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
		byID[inv.ID] = inv
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, taxable_value,
			gst_rate, cgst, sgst, igst, total
		FROM invoice_line WHERE invoice_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var li InvoiceLine
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Description, &li.Quantity,
			&li.UnitPrice, &li.TaxableValue, &li.GSTRate, &li.CGST, &li.SGST,
			&li.IGST, &li.Total); err != nil {
			return err
		}
		inv := byID[li.InvoiceID]
		inv.Lines = append(inv.Lines, li)
	}
	return rows.Err()
}

const paymentCols = `id, clinic_id, invoice_id, patient_id, amount, method, reference,
	taxable_value, cgst, sgst, igst, total_gst, payment_date, received_by, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ClinicID, &p.InvoiceID, &p.PatientID, &p.Amount,
		&p.Method, &p.Reference, &p.TaxableValue, &p.CGST, &p.SGST, &p.IGST,
		&p.TotalGST, &p.PaymentDate, &p.ReceivedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment not found")
	}
	return &p, err
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, clinic_id, invoice_id, patient_id, amount, method,
			reference, taxable_value, cgst, sgst, igst, total_gst, payment_date, received_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.ClinicID, p.InvoiceID, p.PatientID, p.Amount, p.Method,
		p.Reference, p.TaxableValue, p.CGST, p.SGST, p.IGST, p.TotalGST,
		p.PaymentDate, p.ReceivedBy)
	return err
}

func (r *repoPG) GetPaymentByID(ctx context.Context, clinicID, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func paymentWhere(clinicID uuid.UUID, f PaymentFilter) (string, []interface{}) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if f.InvoiceID != nil {
		args = append(args, *f.InvoiceID)
		where += ` AND invoice_id = $` + strconv.Itoa(len(args))
	}
	if f.Method != "" {
		args = append(args, f.Method)
		where += ` AND method = $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += ` AND payment_date >= $` + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += ` AND payment_date < $` + strconv.Itoa(len(args))
	}
	return where, args
}

func (r *repoPG) ListPayments(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Payment, int, error) {
	where, args := paymentWhere(clinicID, f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payment `+where+
			` ORDER BY payment_date DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

const receiptCols = `id, clinic_id, payment_id, invoice_id, patient_id, receipt_number,
	amount, created_at`

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.ClinicID, &rc.PaymentID, &rc.InvoiceID, &rc.PatientID,
		&rc.ReceiptNumber, &rc.Amount, &rc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("receipt not found")
	}
	return &rc, err
}

func (r *repoPG) CreateReceipt(ctx context.Context, rc *Receipt) error {
	rc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO receipt (id, clinic_id, payment_id, invoice_id, patient_id,
			receipt_number, amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rc.ID, rc.ClinicID, rc.PaymentID, rc.InvoiceID, rc.PatientID,
		rc.ReceiptNumber, rc.Amount)
	return err
}

func (r *repoPG) GetReceiptByPayment(ctx context.Context, clinicID, paymentID uuid.UUID) (*Receipt, error) {
	return scanReceipt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+receiptCols+` FROM receipt WHERE payment_id = $1 AND clinic_id = $2`,
		paymentID, clinicID))
}

func (r *repoPG) ListReceipts(ctx context.Context, clinicID uuid.UUID, f PaymentFilter, limit, offset int) ([]*Receipt, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if f.InvoiceID != nil {
		args = append(args, *f.InvoiceID)
		where += ` AND invoice_id = $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += ` AND created_at < $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM receipt `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+receiptCols+` FROM receipt `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var receipts []*Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, rc)
	}
	return receipts, total, rows.Err()
}

func (r *repoPG) CreateBankAccount(ctx context.Context, b *BankAccount) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bank_account (id, clinic_id, bank_name, account_number, ifsc, is_default)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.ClinicID, b.BankName, b.AccountNumber, b.IFSC, b.IsDefault)
	return err
}

func (r *repoPG) ListBankAccounts(ctx context.Context, clinicID uuid.UUID) ([]*BankAccount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, bank_name, account_number, ifsc, is_default, created_at, updated_at
		FROM bank_account WHERE clinic_id = $1 ORDER BY bank_name`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []*BankAccount
	for rows.Next() {
		var b BankAccount
		if err := rows.Scan(&b.ID, &b.ClinicID, &b.BankName, &b.AccountNumber,
			&b.IFSC, &b.IsDefault, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &b)
	}
	return accounts, rows.Err()
}

// SetDefaultBankAccount flips every row's flag in one statement, so the
// clinic can never observe two defaults.
func (r *repoPG) SetDefaultBankAccount(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bank_account SET is_default = (id = $2), updated_at = NOW()
		WHERE clinic_id = $1`, clinicID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bank account not found")
	}
	return nil
}

func (r *repoPG) DeleteBankAccount(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM bank_account WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bank account not found")
	}
	return nil
}

func (r *repoPG) NextNumber(ctx context.Context, clinicID uuid.UUID, kind string) (int, error) {
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO document_counter (clinic_id, kind, next_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (clinic_id, kind)
		DO UPDATE SET next_seq = document_counter.next_seq + 1
		RETURNING next_seq`,
		clinicID, kind).Scan(&seq)
	return seq, err
}
