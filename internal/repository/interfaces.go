package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/terangacare/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles account operations
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByPhone(ctx context.Context, phone string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		SetPhoneVerified(ctx context.Context, id uuid.UUID, verified bool) error
		SetRole(ctx context.Context, id uuid.UUID, role model.Role) error
		SetRoleTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, role model.Role) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		GetByLicense(ctx context.Context, license string) (*model.Doctor, error)
		// ApplyCompletionStats atomically folds a completed appointment
		// into the doctor's counters. The monthly total resets when
		// month differs from the stored one. newPatient additionally
		// bumps total_patients.
		ApplyCompletionStats(ctx context.Context, doctorID uuid.UUID, amount float64, month string, newPatient bool) error
		// UpdateRatingStats overwrites the recomputed rating aggregate.
		UpdateRatingStats(ctx context.Context, doctorID uuid.UUID, averageRating float64, totalReviews int) error
	}

	DoctorRequestRepository interface {
		Create(ctx context.Context, request *model.DoctorRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.DoctorRequest, error)
		GetPendingByUserID(ctx context.Context, userID uuid.UUID) (*model.DoctorRequest, error)
		HasLicense(ctx context.Context, license string) (bool, error)
		List(ctx context.Context, filters *model.DoctorRequestFilters) ([]*model.DoctorRequest, int64, error)
		// MarkReviewed flips a pending request to its terminal status.
		// Returns false when the request was not pending anymore.
		MarkReviewedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.RequestStatus, reviewerID uuid.UUID, rejectionReason, notes string) (bool, error)
		Stats(ctx context.Context) (*model.DoctorRequestStats, error)
		// ListUnprovisioned returns approved requests that still lack a
		// doctor profile, for the reconciliation worker.
		ListUnprovisioned(ctx context.Context, limit int) ([]*model.DoctorRequest, error)
		BeginTx(ctx context.Context) (*sqlx.Tx, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
		// UpdateStatus appends a history entry and moves the
		// appointment to status, guarded on the expected current
		// status. Returns false when the guard did not match.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, entry model.HistoryEntry) (bool, error)
		Cancel(ctx context.Context, id uuid.UUID, from model.AppointmentStatus, cancelledBy, reason string, at time.Time) (bool, error)
		Complete(ctx context.Context, appointment *model.Appointment, completedBy string) (bool, error)
		// SetReview attaches a review exactly once; false when the
		// appointment is not completed or already reviewed.
		SetReview(ctx context.Context, id uuid.UUID, rating int, comment string, at time.Time) (bool, error)
		IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID *uuid.UUID) (bool, error)
		HasPatientConflict(ctx context.Context, patientID uuid.UUID, date time.Time, slot string) (bool, error)
		BookedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
		// CountCompletedBetween counts completed appointments between a
		// doctor and a patient, excluding one appointment id.
		CountCompletedBetween(ctx context.Context, doctorID, patientID uuid.UUID, excludeID uuid.UUID) (int, error)
		// RatingAggregate recomputes the mean rating and review count
		// over all reviewed appointments of the doctor.
		RatingAggregate(ctx context.Context, doctorID uuid.UUID) (float64, int, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Update(ctx context.Context, notification *model.Notification) error
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error)
	}
)
