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

const doctorRequestColumns = `
	id, user_id, specialties, years_of_experience, medical_license_number,
	education, consultation_fee, currency, clinic, working_hours, languages,
	bio, documents, status, rejection_reason, admin_notes,
	requested_at, reviewed_at, reviewed_by, created_at, updated_at
`

func (r *doctorRequestRepository) Create(ctx context.Context, request *model.DoctorRequest) error {
	query := `
		INSERT INTO doctor_requests (` + doctorRequestColumns + `)
		VALUES (
			:id, :user_id, :specialties, :years_of_experience, :medical_license_number,
			:education, :consultation_fee, :currency, :clinic, :working_hours, :languages,
			:bio, :documents, :status, :rejection_reason, :admin_notes,
			:requested_at, :reviewed_at, :reviewed_by, :created_at, :updated_at
		)
	`
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if uniqueViolation(err, pendingRequestIndex) {
			return apperrors.AlreadyExists("pending doctor request")
		}
		return fmt.Errorf("failed to create doctor request: %w", err)
	}
	return nil
}

func (r *doctorRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.DoctorRequest, error) {
	query := `SELECT ` + doctorRequestColumns + ` FROM doctor_requests WHERE id = $1`

	var request model.DoctorRequest
	err := r.db.GetContext(ctx, &request, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor request: %w", err)
	}
	return &request, nil
}

func (r *doctorRequestRepository) GetPendingByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorRequest, error) {
	query := `SELECT ` + doctorRequestColumns + ` FROM doctor_requests WHERE user_id = $1 AND status = 'pending'`

	var request model.DoctorRequest
	err := r.db.GetContext(ctx, &request, query, userID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending request: %w", err)
	}
	return &request, nil
}

func (r *doctorRequestRepository) HasLicense(ctx context.Context, license string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM doctor_requests
			WHERE medical_license_number = $1 AND status IN ('pending', 'approved')
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, license); err != nil {
		return false, fmt.Errorf("failed to check license: %w", err)
	}
	return exists, nil
}

func (r *doctorRequestRepository) List(ctx context.Context, filters *model.DoctorRequestFilters) ([]*model.DoctorRequest, int64, error) {
	query := `SELECT ` + doctorRequestColumns + ` FROM doctor_requests WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctor_requests WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.Status != "" {
		cond := fmt.Sprintf(" AND status = $%d", argCount)
		query += cond
		countQuery += cond
		args = append(args, filters.Status)
		argCount++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count doctor requests: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.Limit(), filters.Offset())

	var requests []*model.DoctorRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list doctor requests: %w", err)
	}
	return requests, total, nil
}

func (r *doctorRequestRepository) MarkReviewedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.RequestStatus, reviewerID uuid.UUID, rejectionReason, notes string) (bool, error) {
	// The status='pending' guard is what makes approve/reject
	// race-safe: only one reviewer wins.
	query := `
		UPDATE doctor_requests
		SET status = $1,
		    rejection_reason = $2,
		    admin_notes = $3,
		    reviewed_at = $4,
		    reviewed_by = $5,
		    updated_at = $4
		WHERE id = $6 AND status = 'pending'
	`
	result, err := tx.ExecContext(ctx, query, status, rejectionReason, notes, time.Now(), reviewerID, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark request reviewed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *doctorRequestRepository) Stats(ctx context.Context) (*model.DoctorRequestStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
		FROM doctor_requests
	`
	var stats model.DoctorRequestStats
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected); err != nil {
		return nil, fmt.Errorf("failed to get request stats: %w", err)
	}
	if stats.Total > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(stats.Total) * 100
	}
	return &stats, nil
}

func (r *doctorRequestRepository) ListUnprovisioned(ctx context.Context, limit int) ([]*model.DoctorRequest, error) {
	// Approved requests whose doctor profile never landed. Normally
	// empty because approval is transactional; the reconciler drains
	// rows left by restored backups or manual interventions.
	query := `
		SELECT ` + doctorRequestColumns + `
		FROM doctor_requests dr
		WHERE dr.status = 'approved'
		AND NOT EXISTS (SELECT 1 FROM doctors d WHERE d.user_id = dr.user_id)
		ORDER BY dr.reviewed_at ASC
		LIMIT $1
	`
	var requests []*model.DoctorRequest
	if err := r.db.SelectContext(ctx, &requests, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unprovisioned requests: %w", err)
	}
	return requests, nil
}

func (r *doctorRequestRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
