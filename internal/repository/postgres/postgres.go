package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/terangacare/booking-api/internal/repository"
)

// Index names backing the active-slot uniqueness constraints. A 23505
// on either one means the advisory pre-check raced another writer.
const (
	doctorSlotIndex     = "appointments_doctor_active_slot_idx"
	patientSlotIndex    = "appointments_patient_active_slot_idx"
	doctorLicenseKey    = "doctors_medical_license_number_key"
	pendingRequestIndex = "doctor_requests_pending_user_idx"
)

type userRepository struct {
	db *sqlx.DB
}

type doctorRepository struct {
	db *sqlx.DB
}

type doctorRequestRepository struct {
	db *sqlx.DB
}

type appointmentRepository struct {
	db *sqlx.DB
}

type notificationRepository struct {
	db *sqlx.DB
}

type auditRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func NewDoctorRequestRepository(db *sqlx.DB) repository.DoctorRequestRepository {
	return &doctorRequestRepository{db: db}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

// uniqueViolation reports whether err is a unique-constraint violation
// on the given constraint or index name.
func uniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
