package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/audit"
	"github.com/terangacare/booking-api/internal/service/notification"
	apperrors "github.com/terangacare/booking-api/pkg/errors"
	"github.com/terangacare/booking-api/pkg/metrics"
)

const (
	defaultDurationMinutes = 30

	// Patients and doctors may not cancel closer than this to the slot.
	// Admins are exempt.
	cancellationCutoff = 2 * time.Hour
)

type Service interface {
	Create(ctx context.Context, patientID uuid.UUID, role model.Role, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id, actorID uuid.UUID, role model.Role) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
	ListForDoctor(ctx context.Context, userID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error)
	SetStatus(ctx context.Context, id, actorID uuid.UUID, role model.Role, to model.AppointmentStatus) (*model.Appointment, error)
	Confirm(ctx context.Context, id, actorID uuid.UUID, role model.Role) (*model.Appointment, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID, role model.Role, reason string) (*model.Appointment, error)
	Complete(ctx context.Context, id, actorID uuid.UUID, role model.Role, req *model.CompleteAppointmentRequest) (*model.Appointment, error)
	AddReview(ctx context.Context, id, patientID uuid.UUID, req *model.ReviewRequest) (*model.Appointment, error)
	BookedSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
}

type service struct {
	repo       repository.AppointmentRepository
	doctorRepo repository.DoctorRepository
	userRepo   repository.UserRepository
	notifier   notification.Service
	auditor    *audit.Service
	now        func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	userRepo repository.UserRepository,
	notifier notification.Service,
	auditor *audit.Service,
) Service {
	return &service{
		repo:       repo,
		doctorRepo: doctorRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		auditor:    auditor,
		now:        time.Now,
	}
}

func (s *service) Create(ctx context.Context, patientID uuid.UUID, role model.Role, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		return nil, apperrors.NewValidation("invalid appointment date")
	}
	if _, err := time.Parse("15:04", req.AppointmentTime); err != nil {
		return nil, apperrors.NewValidation("invalid appointment time")
	}

	doctor, err := s.doctorRepo.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Bookable() {
		return nil, apperrors.DoctorUnavailable()
	}
	if doctor.UserID == patientID {
		return nil, apperrors.Forbidden("doctors cannot book an appointment with themselves")
	}

	now := s.now()
	appointment := &model.Appointment{
		ID:               uuid.New(),
		PatientID:        patientID,
		DoctorID:         doctor.ID,
		AppointmentDate:  date,
		AppointmentTime:  req.AppointmentTime,
		DurationMinutes:  defaultDurationMinutes,
		Status:           model.AppointmentStatusPending,
		ConsultationType: req.ConsultationType,
		Reason:           req.Reason,
		Symptoms:         pq.StringArray(req.Symptoms),
		PatientNotes:     req.PatientNotes,
		PaymentAmount:    doctor.ConsultationFee,
		PaymentCurrency:  doctor.Currency,
		PaymentMethod:    "cash",
		PaymentStatus:    model.PaymentStatusPending,
		CreatedBy:        string(role),
		History: model.HistoryList{{
			Status:    model.AppointmentStatusPending,
			Actor:     string(role),
			Timestamp: now,
		}},
	}
	if appointment.ConsultationType == "" {
		appointment.ConsultationType = model.ConsultationFirstVisit
	}

	if !appointment.StartTime().After(now) {
		return nil, apperrors.InvalidSchedule("appointment must be scheduled in the future")
	}

	// Advisory pre-checks. The partial unique indexes remain the final
	// arbiter when two bookings race past them.
	available, err := s.repo.IsSlotAvailable(ctx, doctor.ID, date, req.AppointmentTime, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot availability: %w", err)
	}
	if !available {
		return nil, apperrors.SlotTaken()
	}

	conflict, err := s.repo.HasPatientConflict(ctx, patientID, date, req.AppointmentTime)
	if err != nil {
		return nil, fmt.Errorf("failed to check patient conflict: %w", err)
	}
	if conflict {
		return nil, apperrors.PatientConflict()
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, err
	}

	metrics.AppointmentsCreated.Inc()
	s.auditor.Log(ctx, patientID, "appointment_created", "appointment", appointment.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"doctor_id": doctor.ID,
			"date":      req.AppointmentDate,
			"time":      req.AppointmentTime,
		},
	})

	s.notifyPatient(ctx, appointment, fmt.Sprintf("Votre demande de rendez-vous du %s à %s a été envoyée", req.AppointmentDate, req.AppointmentTime))
	if doctorUser, err := s.userRepo.Get(ctx, doctor.UserID); err == nil {
		msg := fmt.Sprintf("Nouvelle demande de rendez-vous le %s à %s", req.AppointmentDate, req.AppointmentTime)
		s.notifier.SendSMS(ctx, doctorUser, msg)
		s.notifier.SendPush(ctx, doctorUser, "Nouveau rendez-vous", msg, model.JSONMap{
			"appointment_id": appointment.ID.String(),
		})
	}

	return appointment, nil
}

func (s *service) Get(ctx context.Context, id, actorID uuid.UUID, role model.Role) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, appointment, actorID, role); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (s *service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	return s.repo.List(ctx, filters)
}

func (s *service) ListForPatient(ctx context.Context, patientID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	filters.PatientID = patientID
	return s.repo.List(ctx, filters)
}

func (s *service) ListForDoctor(ctx context.Context, userID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	doctor, err := s.doctorRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	filters.DoctorID = doctor.ID
	return s.repo.List(ctx, filters)
}

// SetStatus moves the appointment to a non-cancellation, non-completion
// status: confirmed, rejected or no_show. Cancellation and completion
// carry extra payload and go through Cancel and Complete.
func (s *service) SetStatus(ctx context.Context, id, actorID uuid.UUID, role model.Role, to model.AppointmentStatus) (*model.Appointment, error) {
	switch to {
	case model.AppointmentStatusConfirmed, model.AppointmentStatusRejected, model.AppointmentStatusNoShow:
	case model.AppointmentStatusCancelled:
		return nil, apperrors.NewValidation("use the cancellation endpoint to cancel")
	case model.AppointmentStatusCompleted:
		return nil, apperrors.NewValidation("use the completion endpoint to complete")
	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("unsupported target status: %s", to))
	}

	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDoctor(ctx, appointment, actorID, role); err != nil {
		return nil, err
	}
	if !model.CanTransition(appointment.Status, to) {
		return nil, apperrors.InvalidTransition(string(appointment.Status), string(to))
	}

	entry := model.HistoryEntry{Status: to, Actor: string(role), Timestamp: s.now()}
	moved, err := s.repo.UpdateStatus(ctx, id, appointment.Status, to, entry)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race against a concurrent transition.
		current, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.InvalidTransition(string(current.Status), string(to))
	}

	appointment.Status = to
	appointment.History = append(appointment.History, entry)

	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	s.auditor.Log(ctx, actorID, "appointment_status_changed", "appointment", id, &audit.LogOptions{
		Changes: map[string]interface{}{"status": to},
	})
	s.notifyPatient(ctx, appointment, statusMessage(to))

	return appointment, nil
}

// Confirm is the doctor's accept shortcut for a pending request.
func (s *service) Confirm(ctx context.Context, id, actorID uuid.UUID, role model.Role) (*model.Appointment, error) {
	return s.SetStatus(ctx, id, actorID, role, model.AppointmentStatusConfirmed)
}

func (s *service) Cancel(ctx context.Context, id, actorID uuid.UUID, role model.Role, reason string) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, appointment, actorID, role); err != nil {
		return nil, err
	}
	if !model.CanTransition(appointment.Status, model.AppointmentStatusCancelled) {
		return nil, apperrors.InvalidTransition(string(appointment.Status), string(model.AppointmentStatusCancelled))
	}

	now := s.now()
	if role != model.RoleAdmin && appointment.StartTime().Sub(now) < cancellationCutoff {
		return nil, apperrors.CancellationCutoff()
	}

	cancelled, err := s.repo.Cancel(ctx, id, appointment.Status, string(role), reason, now)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		current, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.InvalidTransition(string(current.Status), string(model.AppointmentStatusCancelled))
	}

	appointment.Status = model.AppointmentStatusCancelled
	appointment.CancelledBy = string(role)
	appointment.CancelledAt = &now
	appointment.CancelReason = reason

	metrics.StatusTransitions.WithLabelValues(string(model.AppointmentStatusCancelled)).Inc()
	s.auditor.Log(ctx, actorID, "appointment_cancelled", "appointment", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"reason": reason, "cancelled_by": role},
	})

	// The counterparty gets notified, not the actor.
	if role == model.RolePatient {
		if doctor, err := s.doctorRepo.Get(ctx, appointment.DoctorID); err == nil {
			if doctorUser, err := s.userRepo.Get(ctx, doctor.UserID); err == nil {
				s.notifier.SendSMS(ctx, doctorUser, "Un rendez-vous a été annulé par le patient")
			}
		}
	} else {
		s.notifyPatient(ctx, appointment, "Votre rendez-vous a été annulé")
	}

	return appointment, nil
}

func (s *service) Complete(ctx context.Context, id, actorID uuid.UUID, role model.Role, req *model.CompleteAppointmentRequest) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDoctor(ctx, appointment, actorID, role); err != nil {
		return nil, err
	}
	if !model.CanTransition(appointment.Status, model.AppointmentStatusCompleted) {
		return nil, apperrors.InvalidTransition(string(appointment.Status), string(model.AppointmentStatusCompleted))
	}

	appointment.DoctorNotes = req.DoctorNotes
	appointment.Diagnosis = req.Diagnosis
	appointment.Prescription = req.Prescription
	if req.FollowUp != nil {
		appointment.FollowUp = *req.FollowUp
	}

	completed, err := s.repo.Complete(ctx, appointment, string(role))
	if err != nil {
		return nil, err
	}
	if !completed {
		current, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.InvalidTransition(string(current.Status), string(model.AppointmentStatusCompleted))
	}

	now := s.now()
	appointment.Status = model.AppointmentStatusCompleted
	appointment.PaymentStatus = model.PaymentStatusPaid
	appointment.PaidAt = &now

	// A first completed appointment between this pair makes the patient
	// count towards the doctor's total_patients.
	priorCompleted, err := s.repo.CountCompletedBetween(ctx, appointment.DoctorID, appointment.PatientID, appointment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior appointments: %w", err)
	}
	month := now.Format("2006-01")
	if err := s.doctorRepo.ApplyCompletionStats(ctx, appointment.DoctorID, appointment.PaymentAmount, month, priorCompleted == 0); err != nil {
		return nil, fmt.Errorf("failed to update doctor stats: %w", err)
	}

	metrics.StatusTransitions.WithLabelValues(string(model.AppointmentStatusCompleted)).Inc()
	s.auditor.Log(ctx, actorID, "appointment_completed", "appointment", id, nil)
	s.notifyPatient(ctx, appointment, "Votre consultation est terminée. Merci de laisser un avis.")

	return appointment, nil
}

func (s *service) AddReview(ctx context.Context, id, patientID uuid.UUID, req *model.ReviewRequest) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.PatientID != patientID {
		return nil, apperrors.Forbidden("only the patient can review this appointment")
	}
	if appointment.Status != model.AppointmentStatusCompleted {
		return nil, apperrors.NewValidation("only completed appointments can be reviewed")
	}
	if appointment.HasReview() {
		return nil, apperrors.ReviewExists()
	}

	now := s.now()
	set, err := s.repo.SetReview(ctx, id, req.Rating, req.Comment, now)
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, apperrors.ReviewExists()
	}

	appointment.ReviewRating = &req.Rating
	appointment.ReviewComment = req.Comment
	appointment.ReviewedAt = &now

	// The rating pair is always recomputed from scratch rather than
	// incrementally maintained, so it can never drift.
	avg, count, err := s.repo.RatingAggregate(ctx, appointment.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	if err := s.doctorRepo.UpdateRatingStats(ctx, appointment.DoctorID, avg, count); err != nil {
		return nil, fmt.Errorf("failed to update rating stats: %w", err)
	}

	metrics.ReviewsTotal.Inc()
	s.auditor.Log(ctx, patientID, "review_added", "appointment", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"rating": req.Rating},
	})

	return appointment, nil
}

func (s *service) BookedSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, apperrors.NewValidation("invalid date")
	}
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.BookedSlots(ctx, doctorID, d)
}

// authorize allows the patient, the owning doctor, or an admin.
func (s *service) authorize(ctx context.Context, appointment *model.Appointment, actorID uuid.UUID, role model.Role) error {
	switch role {
	case model.RoleAdmin:
		return nil
	case model.RolePatient:
		if appointment.PatientID == actorID {
			return nil
		}
	case model.RoleDoctor:
		if appointment.PatientID == actorID {
			return nil
		}
		doctor, err := s.doctorRepo.GetByUserID(ctx, actorID)
		if err == nil && doctor.ID == appointment.DoctorID {
			return nil
		}
	}
	return apperrors.Forbidden("")
}

// authorizeDoctor allows only the owning doctor or an admin.
func (s *service) authorizeDoctor(ctx context.Context, appointment *model.Appointment, actorID uuid.UUID, role model.Role) error {
	switch role {
	case model.RoleAdmin:
		return nil
	case model.RoleDoctor:
		doctor, err := s.doctorRepo.GetByUserID(ctx, actorID)
		if err == nil && doctor.ID == appointment.DoctorID {
			return nil
		}
	}
	return apperrors.Forbidden("")
}

func (s *service) notifyPatient(ctx context.Context, appointment *model.Appointment, message string) {
	patient, err := s.userRepo.Get(ctx, appointment.PatientID)
	if err != nil {
		return
	}
	s.notifier.SendSMS(ctx, patient, message)
	s.notifier.SendPush(ctx, patient, "Rendez-vous", message, model.JSONMap{
		"appointment_id": appointment.ID.String(),
	})
}

func statusMessage(status model.AppointmentStatus) string {
	switch status {
	case model.AppointmentStatusConfirmed:
		return "Votre rendez-vous a été confirmé"
	case model.AppointmentStatusRejected:
		return "Votre demande de rendez-vous a été refusée"
	case model.AppointmentStatusNoShow:
		return "Vous avez manqué votre rendez-vous"
	default:
		return "Le statut de votre rendez-vous a changé"
	}
}
