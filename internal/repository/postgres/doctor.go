package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/terangacare/booking-api/pkg/errors"

	"github.com/terangacare/booking-api/internal/model"
)

const doctorColumns = `
	id, user_id, medical_license_number, specialties, years_of_experience,
	education, working_hours, consultation_fee, currency, clinic, languages,
	bio, documents, verification_status, verified_at, verified_by,
	is_active, is_available,
	total_appointments AS "stats.total_appointments",
	total_patients AS "stats.total_patients",
	total_income AS "stats.total_income",
	monthly_income_month AS "stats.monthly_income_month",
	monthly_income_amount AS "stats.monthly_income_amount",
	average_rating AS "stats.average_rating",
	total_reviews AS "stats.total_reviews",
	created_at, updated_at
`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	return r.create(ctx, r.db, doctor)
}

func (r *doctorRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, doctor *model.Doctor) error {
	return r.create(ctx, tx, doctor)
}

func (r *doctorRepository) create(ctx context.Context, ext sqlx.ExtContext, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, user_id, medical_license_number, specialties, years_of_experience,
			education, working_hours, consultation_fee, currency, clinic, languages,
			bio, documents, verification_status, verified_at, verified_by,
			is_active, is_available, created_at, updated_at
		) VALUES (
			:id, :user_id, :medical_license_number, :specialties, :years_of_experience,
			:education, :working_hours, :consultation_fee, :currency, :clinic, :languages,
			:bio, :documents, :verification_status, :verified_at, :verified_by,
			:is_active, :is_available, :created_at, :updated_at
		)
	`
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	_, err := sqlx.NamedExecContext(ctx, ext, query, doctor)
	if err != nil {
		if uniqueViolation(err, doctorLicenseKey) {
			return apperrors.DuplicateLicense(doctor.MedicalLicenseNumber)
		}
		if uniqueViolation(err, "doctors_user_id_key") {
			return apperrors.AlreadyExists("doctor profile")
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, userID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor profile", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor by user: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByLicense(ctx context.Context, license string) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE medical_license_number = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, license)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor by license: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) ApplyCompletionStats(ctx context.Context, doctorID uuid.UUID, amount float64, month string, newPatient bool) error {
	// Single statement so concurrent completions never lose increments.
	query := `
		UPDATE doctors
		SET total_appointments = total_appointments + 1,
		    total_income = total_income + $1,
		    monthly_income_amount = CASE
		        WHEN monthly_income_month = $2 THEN monthly_income_amount + $1
		        ELSE $1
		    END,
		    monthly_income_month = $2,
		    total_patients = total_patients + $3,
		    updated_at = $4
		WHERE id = $5
	`
	patientInc := 0
	if newPatient {
		patientInc = 1
	}

	result, err := r.db.ExecContext(ctx, query, amount, month, patientInc, time.Now(), doctorID)
	if err != nil {
		return fmt.Errorf("failed to apply completion stats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("doctor", nil)
	}
	return nil
}

func (r *doctorRepository) UpdateRatingStats(ctx context.Context, doctorID uuid.UUID, averageRating float64, totalReviews int) error {
	query := `
		UPDATE doctors
		SET average_rating = $1, total_reviews = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, averageRating, totalReviews, time.Now(), doctorID)
	if err != nil {
		return fmt.Errorf("failed to update rating stats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("doctor", nil)
	}
	return nil
}
