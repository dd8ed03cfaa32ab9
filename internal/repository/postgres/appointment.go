package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/terangacare/booking-api/pkg/errors"

	"github.com/terangacare/booking-api/internal/model"
)

const appointmentColumns = `
	id, patient_id, doctor_id, appointment_date, appointment_time,
	duration_minutes, status, consultation_type, reason, symptoms,
	patient_notes, doctor_notes, diagnosis, prescription, follow_up,
	payment_amount, payment_currency, payment_method, payment_status, paid_at,
	cancelled_by, cancelled_at, cancel_reason,
	review_rating, review_comment, review_date,
	history, created_by, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (
			:id, :patient_id, :doctor_id, :appointment_date, :appointment_time,
			:duration_minutes, :status, :consultation_type, :reason, :symptoms,
			:patient_notes, :doctor_notes, :diagnosis, :prescription, :follow_up,
			:payment_amount, :payment_currency, :payment_method, :payment_status, :paid_at,
			:cancelled_by, :cancelled_at, :cancel_reason,
			:review_rating, :review_comment, :review_date,
			:history, :created_by, :created_at, :updated_at
		)
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.NamedExecContext(ctx, query, appointment)
	if err != nil {
		// The partial unique indexes are the final arbiter of the
		// check-then-act booking race; losing the race is the same
		// domain error as failing the advisory pre-check.
		if uniqueViolation(err, doctorSlotIndex) {
			return apperrors.SlotTaken()
		}
		if uniqueViolation(err, patientSlotIndex) {
			return apperrors.PatientConflict()
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	addFilter := func(clause string, value interface{}) {
		cond := fmt.Sprintf(clause, argCount)
		query += cond
		countQuery += cond
		args = append(args, value)
		argCount++
	}

	if filters.DoctorID != uuid.Nil {
		addFilter(" AND doctor_id = $%d", filters.DoctorID)
	}
	if filters.PatientID != uuid.Nil {
		addFilter(" AND patient_id = $%d", filters.PatientID)
	}
	if filters.Status != "" {
		addFilter(" AND status = $%d", filters.Status)
	}
	if filters.Date != nil {
		addFilter(" AND appointment_date = $%d", filters.Date.Format("2006-01-02"))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY appointment_date DESC, appointment_time DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, entry model.HistoryEntry) (bool, error) {
	// Guarding on the current status makes the transition atomic even
	// under concurrent writers.
	query := `
		UPDATE appointments
		SET status = $1,
		    history = history || $2::jsonb,
		    updated_at = $3
		WHERE id = $4 AND status = $5
	`
	payload, err := model.HistoryList{entry}.Value()
	if err != nil {
		return false, fmt.Errorf("failed to encode history entry: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, to, payload, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, from model.AppointmentStatus, cancelledBy, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_by = $1,
		    cancelled_at = $2,
		    cancel_reason = $3,
		    history = history || $4::jsonb,
		    updated_at = $2
		WHERE id = $5 AND status = $6
	`
	entry := model.HistoryList{{Status: model.AppointmentStatusCancelled, Actor: cancelledBy, Timestamp: at}}
	payload, err := entry.Value()
	if err != nil {
		return false, fmt.Errorf("failed to encode history entry: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, cancelledBy, at, reason, payload, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) Complete(ctx context.Context, appointment *model.Appointment, completedBy string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'completed',
		    doctor_notes = $1,
		    diagnosis = $2,
		    prescription = $3,
		    follow_up = $4,
		    payment_status = 'paid',
		    paid_at = $5,
		    history = history || $6::jsonb,
		    updated_at = $5
		WHERE id = $7 AND status = 'confirmed'
	`
	now := time.Now()
	entry := model.HistoryList{{Status: model.AppointmentStatusCompleted, Actor: completedBy, Timestamp: now}}
	payload, err := entry.Value()
	if err != nil {
		return false, fmt.Errorf("failed to encode history entry: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		appointment.DoctorNotes,
		appointment.Diagnosis,
		appointment.Prescription,
		appointment.FollowUp,
		now,
		payload,
		appointment.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) SetReview(ctx context.Context, id uuid.UUID, rating int, comment string, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET review_rating = $1,
		    review_comment = $2,
		    review_date = $3,
		    updated_at = $3
		WHERE id = $4 AND status = 'completed' AND review_rating IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, rating, comment, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to set review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND appointment_date = $2
			AND appointment_time = $3
			AND status IN ('pending', 'confirmed')
	`
	args := []interface{}{doctorID, date.Format("2006-01-02"), slot}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}
	query += ")"

	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, args...); err != nil {
		return false, fmt.Errorf("failed to check slot availability: %w", err)
	}
	return !taken, nil
}

func (r *appointmentRepository) HasPatientConflict(ctx context.Context, patientID uuid.UUID, date time.Time, slot string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			AND appointment_date = $2
			AND appointment_time = $3
			AND status IN ('pending', 'confirmed')
		)
	`
	var conflict bool
	if err := r.db.GetContext(ctx, &conflict, query, patientID, date.Format("2006-01-02"), slot); err != nil {
		return false, fmt.Errorf("failed to check patient conflict: %w", err)
	}
	return conflict, nil
}

func (r *appointmentRepository) BookedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	query := `
		SELECT appointment_time FROM appointments
		WHERE doctor_id = $1
		AND appointment_date = $2
		AND status IN ('pending', 'confirmed')
		ORDER BY appointment_time ASC
	`
	var slots []string
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to get booked slots: %w", err)
	}
	return slots, nil
}

func (r *appointmentRepository) CountCompletedBetween(ctx context.Context, doctorID, patientID uuid.UUID, excludeID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2
		AND status = 'completed'
		AND id != $3
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, doctorID, patientID, excludeID); err != nil {
		return 0, fmt.Errorf("failed to count completed appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) RatingAggregate(ctx context.Context, doctorID uuid.UUID) (float64, int, error) {
	query := `
		SELECT COALESCE(ROUND(AVG(review_rating)::numeric, 1), 0), COUNT(*)
		FROM appointments
		WHERE doctor_id = $1 AND review_rating IS NOT NULL
	`
	var avg float64
	var count int
	row := r.db.QueryRowxContext(ctx, query, doctorID)
	if err := row.Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	return avg, count, nil
}
