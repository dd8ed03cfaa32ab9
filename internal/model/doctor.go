package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusApproved VerificationStatus = "approved"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude],
// longitude first.
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude/longitude input.
func NewGeoPoint(latitude, longitude float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

func (p GeoPoint) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *GeoPoint) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// Coordinates is the latitude/longitude pair as submitted by an
// applicant, before normalization into a GeoPoint.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Address struct {
	Street   string    `json:"street"`
	City     string    `json:"city"`
	Region   string    `json:"region,omitempty"`
	Country  string    `json:"country,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
	// Coordinates is only populated on credentialing requests; approval
	// rewrites it into Location.
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Clinic struct {
	Name        string  `json:"name"`
	Address     Address `json:"address"`
	Phone       string  `json:"phone,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (c Clinic) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *Clinic) Scan(src interface{}) error {
	return scanJSON(src, c)
}

type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Field       string `json:"field,omitempty"`
	// Year is set on doctor profiles; GraduationYear on requests.
	Year           int    `json:"year,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty"`
	Country        string `json:"country,omitempty"`
}

type EducationList []EducationEntry

func (l EducationList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(EducationList{})
	}
	return json.Marshal(l)
}

func (l *EducationList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

type DaySchedule struct {
	IsWorking bool   `json:"is_working"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type WorkingHours map[string]DaySchedule

func (w WorkingHours) Value() (driver.Value, error) {
	if w == nil {
		return json.Marshal(WorkingHours{})
	}
	return json.Marshal(w)
}

func (w *WorkingHours) Scan(src interface{}) error {
	return scanJSON(src, w)
}

// DoctorStats are aggregates maintained by the appointment engine.
// Counters are incremented atomically at the store; the rating pair is
// always fully recomputed from reviewed appointments.
type DoctorStats struct {
	TotalAppointments   int     `json:"total_appointments" db:"total_appointments"`
	TotalPatients       int     `json:"total_patients" db:"total_patients"`
	TotalIncome         float64 `json:"total_income" db:"total_income"`
	MonthlyIncomeMonth  string  `json:"monthly_income_month" db:"monthly_income_month"`
	MonthlyIncomeAmount float64 `json:"monthly_income_amount" db:"monthly_income_amount"`
	AverageRating       float64 `json:"average_rating" db:"average_rating"`
	TotalReviews        int     `json:"total_reviews" db:"total_reviews"`
}

// Doctor is a credentialed professional profile. Created exclusively by
// the credentialing engine on approval; at most one per user.
type Doctor struct {
	ID                   uuid.UUID          `json:"id" db:"id"`
	UserID               uuid.UUID          `json:"user_id" db:"user_id"`
	MedicalLicenseNumber string             `json:"medical_license_number" db:"medical_license_number"`
	Specialties          pq.StringArray     `json:"specialties" db:"specialties"`
	YearsOfExperience    int                `json:"years_of_experience" db:"years_of_experience"`
	Education            EducationList      `json:"education" db:"education"`
	WorkingHours         WorkingHours       `json:"working_hours" db:"working_hours"`
	ConsultationFee      float64            `json:"consultation_fee" db:"consultation_fee"`
	Currency             string             `json:"currency" db:"currency"`
	Clinic               Clinic             `json:"clinic" db:"clinic"`
	Languages            pq.StringArray     `json:"languages" db:"languages"`
	Bio                  string             `json:"bio,omitempty" db:"bio"`
	Documents            JSONMap            `json:"documents,omitempty" db:"documents"`
	VerificationStatus   VerificationStatus `json:"verification_status" db:"verification_status"`
	VerifiedAt           *time.Time         `json:"verified_at,omitempty" db:"verified_at"`
	VerifiedBy           *uuid.UUID         `json:"verified_by,omitempty" db:"verified_by"`
	IsActive             bool               `json:"is_active" db:"is_active"`
	IsAvailable          bool               `json:"is_available" db:"is_available"`
	Stats                DoctorStats        `json:"stats" db:"stats"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}

// Bookable reports whether new appointments may be created for the
// doctor.
func (d *Doctor) Bookable() bool {
	return d.VerificationStatus == VerificationStatusApproved && d.IsActive && d.IsAvailable
}
