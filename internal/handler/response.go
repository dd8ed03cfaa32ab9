package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/terangacare/booking-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Page   int         `json:"page"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewListResponse(data interface{}, total int64, page int) *ListResponse {
	return &ListResponse{
		Status: "success",
		Data:   data,
		Total:  total,
		Page:   page,
	}
}

// Error writes an error response with a status derived from the domain
// error code. Unknown errors become an opaque 500.
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}
	c.JSON(statusForCode(appErr.Code), NewErrorResponse(appErr.Message))
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrValidation, apperrors.ErrInvalidSchedule:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrSlotTaken,
		apperrors.ErrPatientConflict,
		apperrors.ErrInvalidTransition,
		apperrors.ErrAlreadyReviewed,
		apperrors.ErrReviewExists,
		apperrors.ErrDuplicateLicense,
		apperrors.ErrAlreadyExists:
		return http.StatusConflict
	case apperrors.ErrCancellationCutoff, apperrors.ErrDoctorUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
