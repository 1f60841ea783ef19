package staff

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
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

const staffCols = `id, clinic_id, name, email, phone, role, specialization,
	is_approved, approval_status, is_email_verified, is_active,
	approved_by, approved_at, created_at, updated_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var st Staff
	err := row.Scan(&st.ID, &st.ClinicID, &st.Name, &st.Email, &st.Phone, &st.Role,
		&st.Specialization, &st.IsApproved, &st.ApprovalStatus, &st.IsEmailVerified,
		&st.IsActive, &st.ApprovedBy, &st.ApprovedAt, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("staff member not found")
	}
	return &st, err
}

func (r *repoPG) Create(ctx context.Context, st *Staff) error {
	st.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (id, clinic_id, name, email, phone, role, specialization,
			is_approved, approval_status, is_email_verified, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		st.ID, st.ClinicID, st.Name, st.Email, st.Phone, st.Role, st.Specialization,
		st.IsApproved, st.ApprovalStatus, st.IsEmailVerified, st.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx,
		`SELECT `+staffCols+` FROM staff WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) GetByEmail(ctx context.Context, clinicID uuid.UUID, email string) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx,
		`SELECT `+staffCols+` FROM staff WHERE clinic_id = $1 AND LOWER(email) = LOWER($2)`,
		clinicID, email))
}

func (r *repoPG) Update(ctx context.Context, st *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET name=$3, email=$4, phone=$5, role=$6, specialization=$7,
			is_approved=$8, approval_status=$9, is_email_verified=$10, is_active=$11,
			approved_by=$12, approved_at=$13, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`,
		st.ID, st.ClinicID, st.Name, st.Email, st.Phone, st.Role, st.Specialization,
		st.IsApproved, st.ApprovalStatus, st.IsEmailVerified, st.IsActive,
		st.ApprovedBy, st.ApprovedAt)
	return err
}

func (r *repoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID, role auth.Role, limit, offset int) ([]*Staff, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if role != "" {
		where += ` AND role = $2`
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM staff `+where+
			` ORDER BY name LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func (r *repoPG) ListPending(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM staff WHERE clinic_id = $1 AND approval_status = $2`,
		clinicID, ApprovalPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM staff WHERE clinic_id = $1 AND approval_status = $2
		 ORDER BY created_at LIMIT $3 OFFSET $4`,
		clinicID, ApprovalPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collect(rows, total)
}

func collect(rows pgx.Rows, total int) ([]*Staff, int, error) {
	var items []*Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, st)
	}
	return items, total, rows.Err()
}
