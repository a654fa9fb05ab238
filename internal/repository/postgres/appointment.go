package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicops/scheduler-api/internal/model"
	"github.com/clinicops/scheduler-api/internal/repository"
	apperrors "github.com/clinicops/scheduler-api/pkg/errors"
	"github.com/clinicops/scheduler-api/pkg/metrics"
)

const appointmentColumns = `
	id, patient_id, doctor_id, nurse_id, created_by_user_id,
	start_time, duration, end_time, status, type, priority,
	reason, symptoms, diagnosis, treatment, prescription, notes,
	actual_start_time, actual_end_time, next_follow_up_date,
	created_at, updated_at`

type appointmentRepository struct {
	db      *sqlx.DB
	ext     sqlx.ExtContext
	metrics *metrics.Metrics
}

func NewAppointmentRepository(db *sqlx.DB, m *metrics.Metrics) repository.AppointmentRepository {
	return &appointmentRepository{db: db, ext: db, metrics: m}
}

func (r *appointmentRepository) observe(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.metrics.DatabaseOperations.WithLabelValues(op, result).Inc()
	r.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (r *appointmentRepository) WithTx(ctx context.Context, fn func(repository.AppointmentRepository) error) error {
	if r.db == nil {
		// already transaction-bound
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &appointmentRepository{ext: tx, metrics: r.metrics}
	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) (err error) {
	defer func(start time.Time) { r.observe("create", start, err) }(time.Now())

	query := `
		INSERT INTO appointments (` + appointmentColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20,
			$21, $22
		)
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err = r.ext.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.NurseID,
		appointment.CreatedByUserID,
		appointment.StartTime,
		appointment.Duration,
		appointment.EndTime,
		appointment.Status,
		appointment.Type,
		appointment.Priority,
		appointment.Reason,
		appointment.Symptoms,
		appointment.Diagnosis,
		appointment.Treatment,
		appointment.Prescription,
		appointment.Notes,
		appointment.ActualStartTime,
		appointment.ActualEndTime,
		appointment.NextFollowUpDate,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "exclusion_violation" {
			return apperrors.Conflict("doctor is not available at the requested time", err)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (apt *model.Appointment, err error) {
	defer func(start time.Time) { r.observe("get", start, err) }(time.Now())

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err = sqlx.GetContext(ctx, r.ext, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) (err error) {
	defer func(start time.Time) { r.observe("update", start, err) }(time.Now())

	query := `
		UPDATE appointments SET
			nurse_id = $1, start_time = $2, duration = $3, end_time = $4,
			status = $5, type = $6, priority = $7,
			reason = $8, symptoms = $9, diagnosis = $10, treatment = $11,
			prescription = $12, notes = $13,
			actual_start_time = $14, actual_end_time = $15,
			next_follow_up_date = $16, updated_at = $17
		WHERE id = $18
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.ext.ExecContext(ctx, query,
		appointment.NurseID,
		appointment.StartTime,
		appointment.Duration,
		appointment.EndTime,
		appointment.Status,
		appointment.Type,
		appointment.Priority,
		appointment.Reason,
		appointment.Symptoms,
		appointment.Diagnosis,
		appointment.Treatment,
		appointment.Prescription,
		appointment.Notes,
		appointment.ActualStartTime,
		appointment.ActualEndTime,
		appointment.NextFollowUpDate,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "exclusion_violation" {
			return apperrors.Conflict("doctor is not available at the requested time", err)
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func(start time.Time) { r.observe("delete", start, err) }(time.Now())

	result, err := r.ext.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) (appointments []*model.Appointment, err error) {
	defer func(start time.Time) { r.observe("list", start, err) }(time.Now())

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}
	argCount := 1

	if filters != nil {
		if filters.DoctorID != nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, *filters.DoctorID)
			argCount++
		}
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
		if len(filters.Statuses) > 0 {
			query += fmt.Sprintf(" AND status = ANY($%d)", argCount)
			args = append(args, pq.Array(statusStrings(filters.Statuses)))
			argCount++
		}
		if len(filters.NotStatuses) > 0 {
			query += fmt.Sprintf(" AND status != ALL($%d)", argCount)
			args = append(args, pq.Array(statusStrings(filters.NotStatuses)))
			argCount++
		}
		if filters.From != nil {
			query += fmt.Sprintf(" AND start_time >= $%d", argCount)
			args = append(args, *filters.From)
			argCount++
		}
		if filters.To != nil {
			query += fmt.Sprintf(" AND start_time <= $%d", argCount)
			args = append(args, *filters.To)
			argCount++
		}
	}

	if filters != nil && filters.SortDesc {
		query += " ORDER BY start_time DESC"
	} else {
		query += " ORDER BY start_time ASC"
	}

	appointments = []*model.Appointment{}
	err = sqlx.SelectContext(ctx, r.ext, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListBlockingForDoctor(ctx context.Context, doctorID uuid.UUID, excludeID *uuid.UUID) (appointments []*model.Appointment, err error) {
	defer func(start time.Time) { r.observe("list_blocking", start, err) }(time.Now())

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND status NOT IN ('cancelled', 'completed')
	`
	args := []interface{}{doctorID}

	if excludeID != nil {
		query += " AND id != $2"
		args = append(args, *excludeID)
	}

	query += " ORDER BY start_time ASC"

	appointments = []*model.Appointment{}
	err = sqlx.SelectContext(ctx, r.ext, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocking appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Statistics(ctx context.Context, from, to *time.Time) (stats *model.AppointmentStatistics, err error) {
	defer func(start time.Time) { r.observe("statistics", start, err) }(time.Now())

	where := " WHERE 1=1"
	var args []interface{}
	argCount := 1

	if from != nil {
		where += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, *from)
		argCount++
	}
	if to != nil {
		where += fmt.Sprintf(" AND start_time <= $%d", argCount)
		args = append(args, *to)
		argCount++
	}

	stats = &model.AppointmentStatistics{
		ByStatus: make(map[model.AppointmentStatus]int),
		ByType:   make(map[model.AppointmentType]int),
	}

	err = sqlx.GetContext(ctx, r.ext, &stats.Total,
		`SELECT COUNT(*) FROM appointments`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	type statusRow struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	var statusRows []statusRow
	err = sqlx.SelectContext(ctx, r.ext, &statusRows,
		`SELECT status, COUNT(*) AS count FROM appointments`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group appointments by status: %w", err)
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
	}

	type typeRow struct {
		Type  model.AppointmentType `db:"type"`
		Count int                   `db:"count"`
	}
	var typeRows []typeRow
	err = sqlx.SelectContext(ctx, r.ext, &typeRows,
		`SELECT type, COUNT(*) AS count FROM appointments`+where+` GROUP BY type`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group appointments by type: %w", err)
	}
	for _, row := range typeRows {
		stats.ByType[row.Type] = row.Count
	}

	return stats, nil
}

func statusStrings(statuses []model.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
