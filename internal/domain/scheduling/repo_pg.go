package scheduling

import (
	"context"
	"encoding/json"
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

const apptCols = `id, clinic_id, patient_id, doctor_id, start_time, end_time, status,
	reason, cancelled_by, cancellation_reason, queue_position, reschedule_history,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var history []byte
	err := row.Scan(&a.ID, &a.ClinicID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime,
		&a.Status, &a.Reason, &a.CancelledBy, &a.CancellationReason, &a.QueuePosition,
		&history, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.RescheduleHistory); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func marshalHistory(entries []RescheduleEntry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(entries)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	history, err := marshalHistory(a.RescheduleHistory)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, clinic_id, patient_id, doctor_id, start_time,
			end_time, status, reason, queue_position, reschedule_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ClinicID, a.PatientID, a.DoctorID, a.StartTime,
		a.EndTime, a.Status, a.Reason, a.QueuePosition, history)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	history, err := marshalHistory(a.RescheduleHistory)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET start_time=$3, end_time=$4, status=$5, reason=$6,
			cancelled_by=$7, cancellation_reason=$8, queue_position=$9,
			reschedule_history=$10, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`,
		a.ID, a.ClinicID, a.StartTime, a.EndTime, a.Status, a.Reason,
		a.CancelledBy, a.CancellationReason, a.QueuePosition, history)
	return err
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := `WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where += ` AND doctor_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Date != nil {
		args = append(args, f.Date.Format("2006-01-02"))
		where += ` AND start_time::date = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment `+where+
			` ORDER BY start_time DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	appts, err := collectAppointments(rows)
	return appts, total, err
}

func (r *repoPG) ListForDoctorOnDate(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment
		 WHERE clinic_id = $1 AND doctor_id = $2 AND start_time::date = $3
		   AND status <> $4
		 ORDER BY start_time`,
		clinicID, doctorID, date.Format("2006-01-02"), StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *repoPG) HasOverlap(ctx context.Context, clinicID, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	q := `SELECT EXISTS (
		SELECT 1 FROM appointment
		WHERE clinic_id = $1 AND doctor_id = $2 AND status <> $3
		  AND start_time < $5 AND end_time > $4`
	args := []interface{}{clinicID, doctorID, StatusCancelled, start, end}
	if excludeID != nil {
		args = append(args, *excludeID)
		q += ` AND id <> $6`
	}
	q += `)`

	var exists bool
	err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(&exists)
	return exists, err
}

func (r *repoPG) Queue(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment
		 WHERE clinic_id = $1 AND doctor_id = $2 AND start_time::date = $3
		   AND status <> $4
		 ORDER BY queue_position NULLS LAST, start_time`,
		clinicID, doctorID, date.Format("2006-01-02"), StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
