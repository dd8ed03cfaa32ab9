package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
)

// Scheduling and credentialing error codes
const (
	ErrInvalidTransition ErrorCode = iota + 2000
	ErrSlotTaken
	ErrPatientConflict
	ErrInvalidSchedule
	ErrCancellationCutoff
	ErrDoctorUnavailable
	ErrAlreadyReviewed
	ErrReviewExists
	ErrDuplicateLicense
	ErrAlreadyExists
)

// Code extracts the ErrorCode from err, or ErrInternal when err is not
// an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewValidation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to),
	}
}

func SlotTaken() *AppError {
	return &AppError{
		Code:    ErrSlotTaken,
		Message: "this time slot is not available",
	}
}

func PatientConflict() *AppError {
	return &AppError{
		Code:    ErrPatientConflict,
		Message: "patient already has an appointment at this time",
	}
}

func InvalidSchedule(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidSchedule,
		Message: message,
	}
}

func CancellationCutoff() *AppError {
	return &AppError{
		Code:    ErrCancellationCutoff,
		Message: "appointments cannot be cancelled less than 2 hours before the scheduled time",
	}
}

func DoctorUnavailable() *AppError {
	return &AppError{
		Code:    ErrDoctorUnavailable,
		Message: "this doctor is not currently available",
	}
}

func AlreadyReviewed() *AppError {
	return &AppError{
		Code:    ErrAlreadyReviewed,
		Message: "this request has already been reviewed",
	}
}

func ReviewExists() *AppError {
	return &AppError{
		Code:    ErrReviewExists,
		Message: "this appointment has already been reviewed",
	}
}

func DuplicateLicense(license string) *AppError {
	return &AppError{
		Code:    ErrDuplicateLicense,
		Message: fmt.Sprintf("medical license number %s is already registered", license),
	}
}

func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists", resource),
	}
}
