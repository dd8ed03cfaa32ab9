package credentialing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/audit"
	"github.com/terangacare/booking-api/internal/service/notification"
	apperrors "github.com/terangacare/booking-api/pkg/errors"
	"github.com/terangacare/booking-api/pkg/metrics"
)

const defaultCurrency = "XOF"

type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, req *model.SubmitDoctorRequest) (*model.DoctorRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DoctorRequest, error)
	GetForUser(ctx context.Context, userID uuid.UUID) (*model.DoctorRequest, error)
	List(ctx context.Context, filters *model.DoctorRequestFilters) ([]*model.DoctorRequest, int64, error)
	Approve(ctx context.Context, id, adminID uuid.UUID, req *model.ApproveDoctorRequest) (*model.Doctor, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, req *model.RejectDoctorRequest) (*model.DoctorRequest, error)
	Stats(ctx context.Context) (*model.DoctorRequestStats, error)
	// Provision builds the doctor profile and promotes the user for an
	// already-approved request. Idempotent; used by the reconciler.
	Provision(ctx context.Context, request *model.DoctorRequest) (*model.Doctor, error)
}

type service struct {
	repo       repository.DoctorRequestRepository
	doctorRepo repository.DoctorRepository
	userRepo   repository.UserRepository
	notifier   notification.Service
	auditor    *audit.Service
	logger     *zerolog.Logger
}

func NewService(
	repo repository.DoctorRequestRepository,
	doctorRepo repository.DoctorRepository,
	userRepo repository.UserRepository,
	notifier notification.Service,
	auditor *audit.Service,
	logger *zerolog.Logger,
) Service {
	return &service{
		repo:       repo,
		doctorRepo: doctorRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		auditor:    auditor,
		logger:     logger,
	}
}

func (s *service) Submit(ctx context.Context, userID uuid.UUID, req *model.SubmitDoctorRequest) (*model.DoctorRequest, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RolePatient {
		return nil, apperrors.Forbidden("only patients can apply to become doctors")
	}
	if !user.IsPhoneVerified {
		return nil, apperrors.Forbidden("phone must be verified before applying")
	}

	if _, err := s.doctorRepo.GetByUserID(ctx, userID); err == nil {
		return nil, apperrors.AlreadyExists("doctor profile")
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if _, err := s.repo.GetPendingByUserID(ctx, userID); err == nil {
		return nil, apperrors.AlreadyExists("pending doctor request")
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if err := s.checkLicense(ctx, req.MedicalLicenseNumber); err != nil {
		return nil, err
	}

	// Coordinates are mandatory at submission so approval never has to
	// fabricate a clinic location.
	coords := req.Clinic.Address.Coordinates
	if coords == nil {
		return nil, apperrors.NewValidation("clinic coordinates are required")
	}
	if coords.Latitude < -90 || coords.Latitude > 90 || coords.Longitude < -180 || coords.Longitude > 180 {
		return nil, apperrors.NewValidation("clinic coordinates are out of range")
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now()
	request := &model.DoctorRequest{
		ID:                   uuid.New(),
		UserID:               userID,
		Specialties:          pq.StringArray(req.Specialties),
		YearsOfExperience:    req.YearsOfExperience,
		MedicalLicenseNumber: req.MedicalLicenseNumber,
		Education:            model.EducationList(req.Education),
		ConsultationFee:      req.ConsultationFee,
		Currency:             currency,
		Clinic:               req.Clinic,
		WorkingHours:         req.WorkingHours,
		Languages:            pq.StringArray(req.Languages),
		Bio:                  req.Bio,
		Documents:            req.Documents,
		Status:               model.RequestStatusPending,
		RequestedAt:          now,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, userID, "doctor_request_submitted", "doctor_request", request.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"license": req.MedicalLicenseNumber},
	})
	s.notifier.SendSMS(ctx, user, "Votre demande de profil médecin a bien été reçue")

	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.DoctorRequest, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*model.DoctorRequest, error) {
	return s.repo.GetPendingByUserID(ctx, userID)
}

func (s *service) List(ctx context.Context, filters *model.DoctorRequestFilters) ([]*model.DoctorRequest, int64, error) {
	return s.repo.List(ctx, filters)
}

// Approve reviews the request, creates the doctor profile and promotes
// the user, all in one transaction. The pending-status guard inside the
// transaction makes concurrent reviews settle on a single winner.
func (s *service) Approve(ctx context.Context, id, adminID uuid.UUID, req *model.ApproveDoctorRequest) (*model.Doctor, error) {
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestStatusPending {
		return nil, apperrors.AlreadyReviewed()
	}

	if _, err := s.doctorRepo.GetByLicense(ctx, request.MedicalLicenseNumber); err == nil {
		return nil, apperrors.DuplicateLicense(request.MedicalLicenseNumber)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reviewed, err := s.repo.MarkReviewedTx(ctx, tx, id, model.RequestStatusApproved, adminID, "", req.Notes)
	if err != nil {
		return nil, err
	}
	if !reviewed {
		return nil, apperrors.AlreadyReviewed()
	}

	doctor := s.buildDoctor(request, adminID)
	if err := s.doctorRepo.CreateTx(ctx, tx, doctor); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetRoleTx(ctx, tx, request.UserID, model.RoleDoctor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	metrics.CredentialingReviews.WithLabelValues("approved").Inc()
	s.auditor.Log(ctx, adminID, "doctor_request_approved", "doctor_request", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"doctor_id": doctor.ID, "user_id": request.UserID},
	})

	if user, err := s.userRepo.Get(ctx, request.UserID); err == nil {
		s.notifier.SendSMS(ctx, user, "Félicitations, votre demande de profil médecin a été approuvée")
		s.notifier.SendPush(ctx, user, "Demande approuvée", "Votre profil médecin est maintenant actif", nil)
	}

	return doctor, nil
}

func (s *service) Reject(ctx context.Context, id, adminID uuid.UUID, req *model.RejectDoctorRequest) (*model.DoctorRequest, error) {
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != model.RequestStatusPending {
		return nil, apperrors.AlreadyReviewed()
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reviewed, err := s.repo.MarkReviewedTx(ctx, tx, id, model.RequestStatusRejected, adminID, req.Reason, req.Notes)
	if err != nil {
		return nil, err
	}
	if !reviewed {
		return nil, apperrors.AlreadyReviewed()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rejection: %w", err)
	}

	now := time.Now()
	request.Status = model.RequestStatusRejected
	request.RejectionReason = req.Reason
	request.AdminNotes = req.Notes
	request.ReviewedAt = &now
	request.ReviewedBy = &adminID

	metrics.CredentialingReviews.WithLabelValues("rejected").Inc()
	s.auditor.Log(ctx, adminID, "doctor_request_rejected", "doctor_request", id, &audit.LogOptions{
		Metadata: map[string]interface{}{"reason": req.Reason},
	})

	if user, err := s.userRepo.Get(ctx, request.UserID); err == nil {
		s.notifier.SendSMS(ctx, user, fmt.Sprintf("Votre demande de profil médecin a été refusée: %s", req.Reason))
	}

	return request, nil
}

func (s *service) Stats(ctx context.Context) (*model.DoctorRequestStats, error) {
	return s.repo.Stats(ctx)
}

func (s *service) Provision(ctx context.Context, request *model.DoctorRequest) (*model.Doctor, error) {
	if request.Status != model.RequestStatusApproved {
		return nil, apperrors.NewValidation("only approved requests can be provisioned")
	}
	if existing, err := s.doctorRepo.GetByUserID(ctx, request.UserID); err == nil {
		// A prior run may have created the profile and died before the
		// promotion, so the role still has to be ensured here.
		if err := s.userRepo.SetRole(ctx, request.UserID, model.RoleDoctor); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	reviewerID := uuid.Nil
	if request.ReviewedBy != nil {
		reviewerID = *request.ReviewedBy
	}
	doctor := s.buildDoctor(request, reviewerID)
	if err := s.doctorRepo.Create(ctx, doctor); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			if err := s.userRepo.SetRole(ctx, request.UserID, model.RoleDoctor); err != nil {
				return nil, err
			}
			return s.doctorRepo.GetByUserID(ctx, request.UserID)
		}
		return nil, err
	}
	if err := s.userRepo.SetRole(ctx, request.UserID, model.RoleDoctor); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", request.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Msg("provisioned doctor profile for approved request")

	return doctor, nil
}

// buildDoctor maps an approved request onto a doctor profile. Education
// years are normalized and the submitted coordinates become a GeoJSON
// point, longitude first.
func (s *service) buildDoctor(request *model.DoctorRequest, reviewerID uuid.UUID) *model.Doctor {
	now := time.Now()

	education := make(model.EducationList, len(request.Education))
	for i, entry := range request.Education {
		e := entry
		if e.Year == 0 {
			e.Year = e.GraduationYear
		}
		e.GraduationYear = 0
		education[i] = e
	}

	clinic := request.Clinic
	if coords := clinic.Address.Coordinates; coords != nil {
		point := model.NewGeoPoint(coords.Latitude, coords.Longitude)
		clinic.Address.Location = &point
		clinic.Address.Coordinates = nil
	}

	doctor := &model.Doctor{
		ID:                   uuid.New(),
		UserID:               request.UserID,
		MedicalLicenseNumber: request.MedicalLicenseNumber,
		Specialties:          request.Specialties,
		YearsOfExperience:    request.YearsOfExperience,
		Education:            education,
		WorkingHours:         request.WorkingHours,
		ConsultationFee:      request.ConsultationFee,
		Currency:             request.Currency,
		Clinic:               clinic,
		Languages:            request.Languages,
		Bio:                  request.Bio,
		Documents:            request.Documents,
		VerificationStatus:   model.VerificationStatusApproved,
		VerifiedAt:           &now,
		IsActive:             true,
		IsAvailable:          true,
	}
	if reviewerID != uuid.Nil {
		doctor.VerifiedBy = &reviewerID
	}
	return doctor
}

// checkLicense rejects a license already held by a doctor or claimed by
// a pending or approved request.
func (s *service) checkLicense(ctx context.Context, license string) error {
	if _, err := s.doctorRepo.GetByLicense(ctx, license); err == nil {
		return apperrors.DuplicateLicense(license)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	taken, err := s.repo.HasLicense(ctx, license)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.DuplicateLicense(license)
	}
	return nil
}
