package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// DoctorRequest is a pending patient→doctor credentialing application.
// Immutable once reviewed, except for admin notes.
type DoctorRequest struct {
	ID                   uuid.UUID      `json:"id" db:"id"`
	UserID               uuid.UUID      `json:"user_id" db:"user_id"`
	Specialties          pq.StringArray `json:"specialties" db:"specialties"`
	YearsOfExperience    int            `json:"years_of_experience" db:"years_of_experience"`
	MedicalLicenseNumber string         `json:"medical_license_number" db:"medical_license_number"`
	Education            EducationList  `json:"education" db:"education"`
	ConsultationFee      float64        `json:"consultation_fee" db:"consultation_fee"`
	Currency             string         `json:"currency" db:"currency"`
	Clinic               Clinic         `json:"clinic" db:"clinic"`
	WorkingHours         WorkingHours   `json:"working_hours" db:"working_hours"`
	Languages            pq.StringArray `json:"languages" db:"languages"`
	Bio                  string         `json:"bio,omitempty" db:"bio"`
	Documents            JSONMap        `json:"documents,omitempty" db:"documents"`
	Status               RequestStatus  `json:"status" db:"status"`
	RejectionReason      string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	AdminNotes           string         `json:"admin_notes,omitempty" db:"admin_notes"`
	RequestedAt          time.Time      `json:"requested_at" db:"requested_at"`
	ReviewedAt           *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy           *uuid.UUID     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

type SubmitDoctorRequest struct {
	Specialties          []string         `json:"specialties" binding:"required,min=1"`
	YearsOfExperience    int              `json:"years_of_experience" binding:"required,min=1,max=50"`
	MedicalLicenseNumber string           `json:"medical_license_number" binding:"required"`
	Education            []EducationEntry `json:"education" binding:"omitempty,dive"`
	ConsultationFee      float64          `json:"consultation_fee" binding:"required,min=0"`
	Currency             string           `json:"currency"`
	Clinic               Clinic           `json:"clinic" binding:"required"`
	WorkingHours         WorkingHours     `json:"working_hours"`
	Languages            []string         `json:"languages"`
	Bio                  string           `json:"bio" binding:"max=2000"`
	Documents            JSONMap          `json:"documents"`
}

type ApproveDoctorRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

type RejectDoctorRequest struct {
	Reason string `json:"reason" binding:"required,min=10,max=500"`
	Notes  string `json:"notes" binding:"max=500"`
}

type DoctorRequestFilters struct {
	Status RequestStatus
	Pagination
}

// DoctorRequestStats is the admin summary of credentialing activity.
type DoctorRequestStats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
}
