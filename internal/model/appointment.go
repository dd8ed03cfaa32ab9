package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// appointmentTransitions is the legal state machine. completed,
// cancelled, rejected and no_show are terminal.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending: {
		AppointmentStatusConfirmed,
		AppointmentStatusCancelled,
		AppointmentStatusRejected,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
}

// CanTransition reports whether from→to is a legal status move.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether the status holds a slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

type ConsultationType string

const (
	ConsultationFirstVisit     ConsultationType = "first_visit"
	ConsultationFollowUp       ConsultationType = "follow_up"
	ConsultationEmergency      ConsultationType = "emergency"
	ConsultationRoutineCheckup ConsultationType = "routine_checkup"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PrescriptionItem struct {
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

type PrescriptionList []PrescriptionItem

func (l PrescriptionList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(PrescriptionList{})
	}
	return json.Marshal(l)
}

func (l *PrescriptionList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// HistoryEntry is an immutable record of a status change.
type HistoryEntry struct {
	Status    AppointmentStatus `json:"status"`
	Actor     string            `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
}

type HistoryList []HistoryEntry

func (l HistoryList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(HistoryList{})
	}
	return json.Marshal(l)
}

func (l *HistoryList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

type FollowUp struct {
	Required      bool       `json:"required"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (f FollowUp) Value() (driver.Value, error) {
	return json.Marshal(f)
}

func (f *FollowUp) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// Appointment binds one patient account to one doctor profile for a
// (date, time) slot. At most one pending/confirmed appointment may
// exist per doctor slot and per patient slot.
type Appointment struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	PatientID        uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID         uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	AppointmentDate  time.Time         `json:"appointment_date" db:"appointment_date"`
	AppointmentTime  string            `json:"appointment_time" db:"appointment_time"`
	DurationMinutes  int               `json:"duration_minutes" db:"duration_minutes"`
	Status           AppointmentStatus `json:"status" db:"status"`
	ConsultationType ConsultationType  `json:"consultation_type" db:"consultation_type"`
	Reason           string            `json:"reason" db:"reason"`
	Symptoms         pq.StringArray    `json:"symptoms,omitempty" db:"symptoms"`
	PatientNotes     string            `json:"patient_notes,omitempty" db:"patient_notes"`
	DoctorNotes      string            `json:"doctor_notes,omitempty" db:"doctor_notes"`
	Diagnosis        string            `json:"diagnosis,omitempty" db:"diagnosis"`
	Prescription     PrescriptionList  `json:"prescription,omitempty" db:"prescription"`
	FollowUp         FollowUp          `json:"follow_up" db:"follow_up"`

	PaymentAmount   float64       `json:"payment_amount" db:"payment_amount"`
	PaymentCurrency string        `json:"payment_currency" db:"payment_currency"`
	PaymentMethod   string        `json:"payment_method" db:"payment_method"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	PaidAt          *time.Time    `json:"paid_at,omitempty" db:"paid_at"`

	CancelledBy     string     `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason    string     `json:"cancel_reason,omitempty" db:"cancel_reason"`

	ReviewRating  *int       `json:"review_rating,omitempty" db:"review_rating"`
	ReviewComment string     `json:"review_comment,omitempty" db:"review_comment"`
	ReviewedAt    *time.Time `json:"review_date,omitempty" db:"review_date"`

	History   HistoryList `json:"history" db:"history"`
	CreatedBy string      `json:"created_by" db:"created_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// StartTime combines the appointment date and HH:MM slot into a single
// wall-clock instant.
func (a *Appointment) StartTime() time.Time {
	t, err := time.Parse("15:04", a.AppointmentTime)
	if err != nil {
		return a.AppointmentDate
	}
	d := a.AppointmentDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, d.Location())
}

// HasReview reports whether a review is already attached.
func (a *Appointment) HasReview() bool {
	return a.ReviewRating != nil
}

type CreateAppointmentRequest struct {
	DoctorID         uuid.UUID        `json:"doctor_id" binding:"required"`
	AppointmentDate  string           `json:"appointment_date" binding:"required,datetime=2006-01-02"`
	AppointmentTime  string           `json:"appointment_time" binding:"required,datetime=15:04"`
	Reason           string           `json:"reason" binding:"required,min=10,max=500"`
	ConsultationType ConsultationType `json:"consultation_type" binding:"omitempty,oneof=first_visit follow_up emergency routine_checkup"`
	Symptoms         []string         `json:"symptoms" binding:"omitempty,dive,max=100"`
	PatientNotes     string           `json:"patient_notes" binding:"max=1000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=pending confirmed completed cancelled rejected no_show"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

type CompleteAppointmentRequest struct {
	DoctorNotes  string             `json:"doctor_notes" binding:"max=2000"`
	Diagnosis    string             `json:"diagnosis" binding:"max=1000"`
	Prescription []PrescriptionItem `json:"prescription"`
	FollowUp     *FollowUp          `json:"follow_up"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=500"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	Date      *time.Time
	Pagination
}
