package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"

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

const itemCols = `id, clinic_id, name, code, category, description, supplier_name,
	unit_of_measure, current_quantity, reorder_level, ideal_quantity, unit_cost,
	expiry_date, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ClinicID, &it.Name, &it.Code, &it.Category,
		&it.Description, &it.SupplierName, &it.UnitOfMeasure,
		&it.CurrentQuantity, &it.ReorderLevel, &it.IdealQuantity, &it.UnitCost,
		&it.ExpiryDate, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory item not found")
	}
	return &it, err
}

func (r *repoPG) CreateItem(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_item (id, clinic_id, name, code, category, description,
			supplier_name, unit_of_measure, current_quantity, reorder_level,
			ideal_quantity, unit_cost, expiry_date, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		it.ID, it.ClinicID, it.Name, it.Code, it.Category, it.Description,
		it.SupplierName, it.UnitOfMeasure, it.CurrentQuantity, it.ReorderLevel,
		it.IdealQuantity, it.UnitCost, it.ExpiryDate, it.IsActive)
	return err
}

func (r *repoPG) GetItemByID(ctx context.Context, clinicID, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_item WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) GetItemAnyClinic(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_item WHERE id = $1`, id))
}

func (r *repoPG) UpdateItem(ctx context.Context, it *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_item SET name=$3, category=$4, description=$5, supplier_name=$6,
			unit_of_measure=$7, reorder_level=$8, ideal_quantity=$9, unit_cost=$10,
			expiry_date=$11, is_active=$12, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`,
		it.ID, it.ClinicID, it.Name, it.Category, it.Description, it.SupplierName,
		it.UnitOfMeasure, it.ReorderLevel, it.IdealQuantity, it.UnitCost,
		it.ExpiryDate, it.IsActive)
	return err
}

func (r *repoPG) QueryItems(ctx context.Context, clinicID uuid.UUID, f Filters, limit, offset int) ([]*Item, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}

	add := func(clause string, vals ...interface{}) {
		for _, v := range vals {
			args = append(args, v)
			clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1)
		}
		where += ` AND ` + clause
	}

	if f.Category != "" {
		add(`category = ?`, f.Category)
	}
	if f.Active != nil {
		add(`is_active = ?`, *f.Active)
	}
	if f.LowStock {
		where += ` AND is_active AND current_quantity <= reorder_level`
	}
	if f.ExpiringDays > 0 {
		add(`expiry_date IS NOT NULL AND expiry_date <= NOW() + make_interval(days => ?)`, f.ExpiringDays)
	}
	if f.Supplier != "" {
		add(`supplier_name ILIKE ?`, "%"+f.Supplier+"%")
	}
	if f.Search != "" {
		p := "%" + f.Search + "%"
		add(`(name ILIKE ? OR code ILIKE ? OR description ILIKE ?)`, p, p, p)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_item `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM inventory_item `+where+
			` ORDER BY name LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AdjustQuantity(ctx context.Context, clinicID, itemID uuid.UUID, delta int) (int, error) {
	var qty int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE inventory_item
		SET current_quantity = GREATEST(0, current_quantity + $3), updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2
		RETURNING current_quantity`,
		itemID, clinicID, delta).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("inventory item not found")
	}
	return qty, err
}

func (r *repoPG) DecrementIfAvailable(ctx context.Context, clinicID, itemID uuid.UUID, qty int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_item
		SET current_quantity = current_quantity - $3, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2 AND current_quantity >= $3`,
		itemID, clinicID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const txnCols = `id, clinic_id, item_id, type, quantity, unit_cost, total_cost,
	reference, notes, performed_by, created_at`

func scanTxn(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.ClinicID, &t.ItemID, &t.Type, &t.Quantity,
		&t.UnitCost, &t.TotalCost, &t.Reference, &t.Notes, &t.PerformedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory transaction not found")
	}
	return &t, err
}

func (r *repoPG) CreateTransaction(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_transaction (id, clinic_id, item_id, type, quantity,
			unit_cost, total_cost, reference, notes, performed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.ClinicID, t.ItemID, t.Type, t.Quantity,
		t.UnitCost, t.TotalCost, t.Reference, t.Notes, t.PerformedBy)
	return err
}

func (r *repoPG) ListTransactions(ctx context.Context, clinicID uuid.UUID, itemID *uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if itemID != nil {
		where += ` AND item_id = $2`
		args = append(args, *itemID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_transaction `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txnCols+` FROM inventory_transaction `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	txns, err := collectTxns(rows)
	return txns, total, err
}

func (r *repoPG) RecentTransactions(ctx context.Context, clinicID uuid.UUID, n int) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txnCols+` FROM inventory_transaction
		 WHERE clinic_id = $1 ORDER BY created_at DESC LIMIT $2`, clinicID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTxns(rows)
}

func collectTxns(rows pgx.Rows) ([]*Transaction, error) {
	var txns []*Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *repoPG) NextCodeSequence(ctx context.Context, clinicID uuid.UUID, category string) (int, error) {
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO item_code_counter (clinic_id, category, next_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (clinic_id, category)
		DO UPDATE SET next_seq = item_code_counter.next_seq + 1
		RETURNING next_seq`,
		clinicID, category).Scan(&seq)
	return seq, err
}

func (r *repoPG) Stats(ctx context.Context, clinicID uuid.UUID) (*Stats, error) {
	st := &Stats{CategoryDistribution: map[string]int{}}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND current_quantity <= reorder_level),
			COUNT(*) FILTER (WHERE is_active AND current_quantity = 0),
			COALESCE(SUM(current_quantity * unit_cost), 0)
		FROM inventory_item WHERE clinic_id = $1`, clinicID).
		Scan(&st.TotalItems, &st.ActiveItems, &st.LowStockCount, &st.OutOfStockCount, &st.TotalValuation)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT category, COUNT(*) FROM inventory_item
		WHERE clinic_id = $1 AND is_active GROUP BY category`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		st.CategoryDistribution[cat] = n
	}
	return st, rows.Err()
}
