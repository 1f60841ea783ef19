package procedure

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

const procCols = `id, clinic_id, patient_id, dentist_id, name, category, tooth_number,
	status, notes, procedure_date, total_inventory_cost, created_at, updated_at`

func scanProcedure(row pgx.Row) (*DentalProcedure, error) {
	var p DentalProcedure
	err := row.Scan(&p.ID, &p.ClinicID, &p.PatientID, &p.DentistID, &p.Name, &p.Category,
		&p.ToothNumber, &p.Status, &p.Notes, &p.ProcedureDate, &p.TotalInventoryCost,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("procedure not found")
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *DentalProcedure) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dental_procedure (id, clinic_id, patient_id, dentist_id, name,
			category, tooth_number, status, notes, procedure_date, total_inventory_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.ClinicID, p.PatientID, p.DentistID, p.Name,
		p.Category, p.ToothNumber, p.Status, p.Notes, p.ProcedureDate, p.TotalInventoryCost)
	if err != nil {
		return err
	}
	for i := range p.Items {
		p.Items[i].ProcedureID = p.ID
	}
	return r.AddItems(ctx, p.ID, p.Items)
}

func (r *repoPG) AddItems(ctx context.Context, procedureID uuid.UUID, items []ProcedureItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ProcedureID = procedureID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO procedure_item (id, procedure_id, item_id, item_name, quantity,
				unit_cost, total_cost)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			items[i].ID, procedureID, items[i].ItemID, items[i].ItemName,
			items[i].Quantity, items[i].UnitCost, items[i].TotalCost)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*DentalProcedure, error) {
	p, err := scanProcedure(r.conn(ctx).QueryRow(ctx,
		`SELECT `+procCols+` FROM dental_procedure WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	p.Items, err = r.itemsFor(ctx, []uuid.UUID{p.ID})
	return p, err
}

func (r *repoPG) itemsFor(ctx context.Context, procedureIDs []uuid.UUID) ([]ProcedureItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, procedure_id, item_id, item_name, quantity, unit_cost, total_cost
		FROM procedure_item WHERE procedure_id = ANY($1) ORDER BY item_name`, procedureIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProcedureItem
	for rows.Next() {
		var li ProcedureItem
		if err := rows.Scan(&li.ID, &li.ProcedureID, &li.ItemID, &li.ItemName,
			&li.Quantity, &li.UnitCost, &li.TotalCost); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *DentalProcedure) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dental_procedure SET name=$3, category=$4, tooth_number=$5, status=$6,
			notes=$7, procedure_date=$8, total_inventory_cost=$9, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`,
		p.ID, p.ClinicID, p.Name, p.Category, p.ToothNumber, p.Status,
		p.Notes, p.ProcedureDate, p.TotalInventoryCost)
	return err
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, patientID, dentistID *uuid.UUID, limit, offset int) ([]*DentalProcedure, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if patientID != nil {
		args = append(args, *patientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if dentistID != nil {
		args = append(args, *dentistID)
		where += ` AND dentist_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dental_procedure `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procCols+` FROM dental_procedure `+where+
			` ORDER BY procedure_date DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	procs, err := collectProcedures(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, procs); err != nil {
		return nil, 0, err
	}
	return procs, total, nil
}

func (r *repoPG) ListInRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time, category string) ([]*DentalProcedure, error) {
	where := `WHERE clinic_id = $1 AND procedure_date >= $2 AND procedure_date < $3`
	args := []interface{}{clinicID, from, to}
	if category != "" {
		args = append(args, category)
		where += ` AND category = $4`
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procCols+` FROM dental_procedure `+where+` ORDER BY procedure_date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	procs, err := collectProcedures(rows)
	if err != nil {
		return nil, err
	}
	return procs, r.attachItems(ctx, procs)
}

func collectProcedures(rows pgx.Rows) ([]*DentalProcedure, error) {
	var procs []*DentalProcedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, rows.Err()
}

func (r *repoPG) attachItems(ctx context.Context, procs []*DentalProcedure) error {
	if len(procs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(procs))
	byID := make(map[uuid.UUID]*DentalProcedure, len(procs))
	for i, p := range procs {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, li := range items {
		p := byID[li.ProcedureID]
		p.Items = append(p.Items, li)
	}
	return nil
}
