package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/terangacare/booking-api/internal/handler"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/appointment"
)

type Handler struct {
	doctorRepo     repository.DoctorRepository
	appointmentSvc appointment.Service
}

func NewHandler(doctorRepo repository.DoctorRepository, appointmentSvc appointment.Service) *Handler {
	return &Handler{doctorRepo: doctorRepo, appointmentSvc: appointmentSvc}
}

// Get returns a doctor's public profile.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	doctor, err := h.doctorRepo.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

// BookedSlots returns the occupied HH:MM slots of a doctor for a day,
// so clients can grey out taken times.
func (h *Handler) BookedSlots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("date is required"))
		return
	}

	slots, err := h.appointmentSvc.BookedSlots(c.Request.Context(), id, date)
	if err != nil {
		handler.Error(c, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"date":         date,
		"booked_slots": slots,
	}))
}
