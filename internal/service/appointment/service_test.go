package appointment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/service/audit"
	apperrors "github.com/terangacare/booking-api/pkg/errors"
)

// In-memory fakes that mirror the guarantees of the postgres layer,
// including the active-slot uniqueness enforced there by partial
// unique indexes.

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.appointments {
		if !other.Status.Active() {
			continue
		}
		if !other.AppointmentDate.Equal(a.AppointmentDate) || other.AppointmentTime != a.AppointmentTime {
			continue
		}
		if other.DoctorID == a.DoctorID {
			return apperrors.SlotTaken()
		}
		if other.PatientID == a.PatientID {
			return apperrors.PatientConflict()
		}
	}
	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.appointments {
		if filters.DoctorID != uuid.Nil && a.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && a.PatientID != filters.PatientID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus, entry model.HistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.History = append(a.History, entry)
	return true, nil
}

func (r *fakeAppointmentRepo) Cancel(_ context.Context, id uuid.UUID, from model.AppointmentStatus, cancelledBy, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = model.AppointmentStatusCancelled
	a.CancelledBy = cancelledBy
	a.CancelledAt = &at
	a.CancelReason = reason
	return true, nil
}

func (r *fakeAppointmentRepo) Complete(_ context.Context, appointment *model.Appointment, completedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[appointment.ID]
	if !ok || a.Status != model.AppointmentStatusConfirmed {
		return false, nil
	}
	now := time.Now()
	a.Status = model.AppointmentStatusCompleted
	a.DoctorNotes = appointment.DoctorNotes
	a.Diagnosis = appointment.Diagnosis
	a.Prescription = appointment.Prescription
	a.FollowUp = appointment.FollowUp
	a.PaymentStatus = model.PaymentStatusPaid
	a.PaidAt = &now
	a.History = append(a.History, model.HistoryEntry{Status: model.AppointmentStatusCompleted, Actor: completedBy, Timestamp: now})
	return true, nil
}

func (r *fakeAppointmentRepo) SetReview(_ context.Context, id uuid.UUID, rating int, comment string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != model.AppointmentStatusCompleted || a.ReviewRating != nil {
		return false, nil
	}
	a.ReviewRating = &rating
	a.ReviewComment = comment
	a.ReviewedAt = &at
	return true, nil
}

func (r *fakeAppointmentRepo) IsSlotAvailable(_ context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.AppointmentTime == slot && a.Status.Active() {
			return false, nil
		}
	}
	return true, nil
}

func (r *fakeAppointmentRepo) HasPatientConflict(_ context.Context, patientID uuid.UUID, date time.Time, slot string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.PatientID == patientID && a.AppointmentDate.Equal(date) && a.AppointmentTime == slot && a.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAppointmentRepo) BookedSlots(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var slots []string
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.Status.Active() {
			slots = append(slots, a.AppointmentTime)
		}
	}
	return slots, nil
}

func (r *fakeAppointmentRepo) CountCompletedBetween(_ context.Context, doctorID, patientID uuid.UUID, excludeID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.appointments {
		if a.ID != excludeID && a.DoctorID == doctorID && a.PatientID == patientID && a.Status == model.AppointmentStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeAppointmentRepo) RatingAggregate(_ context.Context, doctorID uuid.UUID) (float64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, count := 0, 0
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.ReviewRating != nil {
			sum += *a.ReviewRating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	// Matches ROUND(AVG(..)::numeric, 1) at the store.
	avg := float64(int(float64(sum)/float64(count)*10+0.5)) / 10
	return avg, count, nil
}

type fakeDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*model.Doctor
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
}

func (r *fakeDoctorRepo) Create(_ context.Context, d *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *fakeDoctorRepo) CreateTx(ctx context.Context, _ *sqlx.Tx, d *model.Doctor) error {
	return r.Create(ctx, d)
}

func (r *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *fakeDoctorRepo) GetByLicense(_ context.Context, license string) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.MedicalLicenseNumber == license {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *fakeDoctorRepo) ApplyCompletionStats(_ context.Context, doctorID uuid.UUID, amount float64, month string, newPatient bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[doctorID]
	if !ok {
		return apperrors.NotFound("doctor", nil)
	}
	d.Stats.TotalAppointments++
	d.Stats.TotalIncome += amount
	if d.Stats.MonthlyIncomeMonth == month {
		d.Stats.MonthlyIncomeAmount += amount
	} else {
		d.Stats.MonthlyIncomeMonth = month
		d.Stats.MonthlyIncomeAmount = amount
	}
	if newPatient {
		d.Stats.TotalPatients++
	}
	return nil
}

func (r *fakeDoctorRepo) UpdateRatingStats(_ context.Context, doctorID uuid.UUID, averageRating float64, totalReviews int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[doctorID]
	if !ok {
		return apperrors.NotFound("doctor", nil)
	}
	d.Stats.AverageRating = averageRating
	d.Stats.TotalReviews = totalReviews
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) SetPhoneVerified(_ context.Context, id uuid.UUID, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.IsPhoneVerified = verified
	}
	return nil
}

func (r *fakeUserRepo) SetRole(_ context.Context, id uuid.UUID, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Role = role
	}
	return nil
}

func (r *fakeUserRepo) SetRoleTx(ctx context.Context, _ *sqlx.Tx, id uuid.UUID, role model.Role) error {
	return r.SetRole(ctx, id, role)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Send(_ context.Context, _ *model.Notification) error { return nil }

func (n *fakeNotifier) SendSMS(_ context.Context, _ *model.User, content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, content)
}

func (n *fakeNotifier) SendPush(_ context.Context, _ *model.User, _, body string, _ model.JSONMap) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, body)
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*model.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, log *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ map[string]interface{}) ([]*model.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs, nil
}

type fixture struct {
	svc        *service
	repo       *fakeAppointmentRepo
	doctorRepo *fakeDoctorRepo
	userRepo   *fakeUserRepo
	notifier   *fakeNotifier
	patient    *model.User
	doctor     *model.Doctor
	doctorUser *model.User
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:       newFakeAppointmentRepo(),
		doctorRepo: newFakeDoctorRepo(),
		userRepo:   newFakeUserRepo(),
		notifier:   &fakeNotifier{},
		now:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = &service{
		repo:       f.repo,
		doctorRepo: f.doctorRepo,
		userRepo:   f.userRepo,
		notifier:   f.notifier,
		auditor:    audit.NewService(&fakeAuditRepo{}),
		now:        func() time.Time { return f.now },
	}

	f.patient = &model.User{ID: uuid.New(), Phone: "+221770000001", Role: model.RolePatient, IsPhoneVerified: true}
	f.doctorUser = &model.User{ID: uuid.New(), Phone: "+221770000002", Role: model.RoleDoctor}
	require.NoError(t, f.userRepo.Create(context.Background(), f.patient))
	require.NoError(t, f.userRepo.Create(context.Background(), f.doctorUser))

	f.doctor = &model.Doctor{
		ID:                   uuid.New(),
		UserID:               f.doctorUser.ID,
		MedicalLicenseNumber: "SN-MED-1234",
		ConsultationFee:      15000,
		Currency:             "XOF",
		VerificationStatus:   model.VerificationStatusApproved,
		IsActive:             true,
		IsAvailable:          true,
	}
	require.NoError(t, f.doctorRepo.Create(context.Background(), f.doctor))

	return f
}

func (f *fixture) createRequest(date, slot string) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		DoctorID:        f.doctor.ID,
		AppointmentDate: date,
		AppointmentTime: slot,
		Reason:          "persistent headaches for a week",
	}
}

func (f *fixture) book(t *testing.T, date, slot string) *model.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), f.patient.ID, model.RolePatient, f.createRequest(date, slot))
	require.NoError(t, err)
	return a
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	a := f.book(t, "2026-03-15", "10:00")

	assert.Equal(t, model.AppointmentStatusPending, a.Status)
	assert.Equal(t, f.doctor.ID, a.DoctorID)
	assert.Equal(t, f.patient.ID, a.PatientID)
	assert.Equal(t, 15000.0, a.PaymentAmount)
	assert.Equal(t, "XOF", a.PaymentCurrency)
	assert.Equal(t, model.PaymentStatusPending, a.PaymentStatus)
	assert.Equal(t, model.ConsultationFirstVisit, a.ConsultationType)
	require.Len(t, a.History, 1)
	assert.Equal(t, model.AppointmentStatusPending, a.History[0].Status)
	assert.NotEmpty(t, f.notifier.messages, "doctor should be notified")
}

func TestCreateSlotTaken(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-03-15", "10:00")

	other := &model.User{ID: uuid.New(), Phone: "+221770000003", Role: model.RolePatient}
	require.NoError(t, f.userRepo.Create(context.Background(), other))

	_, err := f.svc.Create(context.Background(), other.ID, model.RolePatient, f.createRequest("2026-03-15", "10:00"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))

	// A different slot on the same day is fine.
	_, err = f.svc.Create(context.Background(), other.ID, model.RolePatient, f.createRequest("2026-03-15", "10:30"))
	assert.NoError(t, err)
}

func TestCreatePatientConflict(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-03-15", "10:00")

	secondDoctorUser := &model.User{ID: uuid.New(), Phone: "+221770000004", Role: model.RoleDoctor}
	require.NoError(t, f.userRepo.Create(context.Background(), secondDoctorUser))
	secondDoctor := &model.Doctor{
		ID:                 uuid.New(),
		UserID:             secondDoctorUser.ID,
		ConsultationFee:    20000,
		Currency:           "XOF",
		VerificationStatus: model.VerificationStatusApproved,
		IsActive:           true,
		IsAvailable:        true,
	}
	require.NoError(t, f.doctorRepo.Create(context.Background(), secondDoctor))

	req := f.createRequest("2026-03-15", "10:00")
	req.DoctorID = secondDoctor.ID
	_, err := f.svc.Create(context.Background(), f.patient.ID, model.RolePatient, req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPatientConflict))
}

func TestCreateDoctorNotBookable(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(d *model.Doctor)
	}{
		{"pending verification", func(d *model.Doctor) { d.VerificationStatus = model.VerificationStatusPending }},
		{"inactive", func(d *model.Doctor) { d.IsActive = false }},
		{"unavailable", func(d *model.Doctor) { d.IsAvailable = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := *f.doctor
			d.ID = uuid.New()
			d.UserID = uuid.New()
			tc.mutate(&d)
			require.NoError(t, f.doctorRepo.Create(context.Background(), &d))

			req := f.createRequest("2026-03-15", "11:00")
			req.DoctorID = d.ID
			_, err := f.svc.Create(context.Background(), f.patient.ID, model.RolePatient, req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrDoctorUnavailable))
		})
	}
}

func TestCreateInPast(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.patient.ID, model.RolePatient, f.createRequest("2026-03-09", "10:00"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidSchedule))

	// Same day but an earlier hour is also in the past.
	_, err = f.svc.Create(context.Background(), f.patient.ID, model.RolePatient, f.createRequest("2026-03-10", "08:00"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidSchedule))
}

func TestCreateSelfBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.doctorUser.ID, model.RoleDoctor, f.createRequest("2026-03-15", "10:00"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCreateConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)

	const racers = 20
	patients := make([]*model.User, racers)
	for i := range patients {
		patients[i] = &model.User{ID: uuid.New(), Phone: fmt.Sprintf("+2217701%05d", i), Role: model.RolePatient}
		require.NoError(t, f.userRepo.Create(context.Background(), patients[i]))
	}

	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(p *model.User) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), p.ID, model.RolePatient, f.createRequest("2026-03-15", "10:00"))
			results <- err
		}(patients[i])
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one booking must win the slot")
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	confirmed, err := f.svc.Confirm(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	_, err = f.svc.Confirm(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestSetStatusTransitions(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		prepare func(t *testing.T, a *model.Appointment)
		to      model.AppointmentStatus
		wantErr apperrors.ErrorCode
	}{
		{"pending to confirmed", nil, model.AppointmentStatusConfirmed, 0},
		{"pending to rejected", nil, model.AppointmentStatusRejected, 0},
		{"pending to no_show", nil, model.AppointmentStatusNoShow, apperrors.ErrInvalidTransition},
		{"pending to completed", nil, model.AppointmentStatusCompleted, apperrors.ErrValidation},
		{"pending to cancelled", nil, model.AppointmentStatusCancelled, apperrors.ErrValidation},
		{
			"confirmed to no_show",
			func(t *testing.T, a *model.Appointment) {
				_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
				require.NoError(t, err)
			},
			model.AppointmentStatusNoShow, 0,
		},
		{
			"rejected is terminal",
			func(t *testing.T, a *model.Appointment) {
				_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusRejected)
				require.NoError(t, err)
			},
			model.AppointmentStatusConfirmed, apperrors.ErrInvalidTransition,
		},
	}

	slot := 10
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := f.book(t, "2026-03-15", fmt.Sprintf("%d:00", slot))
			slot++
			if tc.prepare != nil {
				tc.prepare(t, a)
			}

			updated, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, tc.to)
			if tc.wantErr != 0 {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, updated.Status)
			last := updated.History[len(updated.History)-1]
			assert.Equal(t, tc.to, last.Status)
		})
	}
}

func TestSetStatusForbiddenForPatient(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	_, err := f.svc.SetStatus(context.Background(), a.ID, f.patient.ID, model.RolePatient, model.AppointmentStatusConfirmed)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestCancelCutoff(t *testing.T) {
	f := newFixture(t)
	// Slot is 90 minutes from now, inside the 2 hour cutoff.
	a := f.book(t, "2026-03-10", "10:30")

	_, err := f.svc.Cancel(context.Background(), a.ID, f.patient.ID, model.RolePatient, "changed my mind")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCancellationCutoff))

	// Admins are exempt from the cutoff.
	admin := &model.User{ID: uuid.New(), Phone: "+221770000099", Role: model.RoleAdmin}
	require.NoError(t, f.userRepo.Create(context.Background(), admin))
	cancelled, err := f.svc.Cancel(context.Background(), a.ID, admin.ID, model.RoleAdmin, "clinic closed")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, string(model.RoleAdmin), cancelled.CancelledBy)
}

func TestCancelOutsideCutoff(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	cancelled, err := f.svc.Cancel(context.Background(), a.ID, f.patient.ID, model.RolePatient, "travelling")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "travelling", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	// The slot frees up.
	other := &model.User{ID: uuid.New(), Phone: "+221770000005", Role: model.RolePatient}
	require.NoError(t, f.userRepo.Create(context.Background(), other))
	_, err = f.svc.Create(context.Background(), other.ID, model.RolePatient, f.createRequest("2026-03-15", "10:00"))
	assert.NoError(t, err)
}

func TestCancelTerminal(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")
	_, err := f.svc.Cancel(context.Background(), a.ID, f.patient.ID, model.RolePatient, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), a.ID, f.patient.ID, model.RolePatient, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")
	_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
	require.NoError(t, err)

	completed, err := f.svc.Complete(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, &model.CompleteAppointmentRequest{
		Diagnosis:   "tension headache",
		DoctorNotes: "advised rest and hydration",
		Prescription: []model.PrescriptionItem{
			{Medication: "Paracétamol", Dosage: "500mg", Frequency: "3x/day", Duration: "5 days"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)
	assert.Equal(t, model.PaymentStatusPaid, completed.PaymentStatus)
	require.NotNil(t, completed.PaidAt)

	doctor, err := f.doctorRepo.Get(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, doctor.Stats.TotalAppointments)
	assert.Equal(t, 1, doctor.Stats.TotalPatients)
	assert.Equal(t, 15000.0, doctor.Stats.TotalIncome)
	assert.Equal(t, "2026-03", doctor.Stats.MonthlyIncomeMonth)
	assert.Equal(t, 15000.0, doctor.Stats.MonthlyIncomeAmount)
}

func TestCompleteByAdminRecordsActor(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")
	_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), a.ID, uuid.New(), model.RoleAdmin, &model.CompleteAppointmentRequest{})
	require.NoError(t, err)

	stored, err := f.repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.History)
	last := stored.History[len(stored.History)-1]
	assert.Equal(t, model.AppointmentStatusCompleted, last.Status)
	assert.Equal(t, string(model.RoleAdmin), last.Actor)
}

func TestCompleteRepeatPatientCountedOnce(t *testing.T) {
	f := newFixture(t)

	confirmAndComplete := func(slot string) {
		a := f.book(t, "2026-03-15", slot)
		_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
		require.NoError(t, err)
		_, err = f.svc.Complete(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, &model.CompleteAppointmentRequest{})
		require.NoError(t, err)
	}

	confirmAndComplete("10:00")
	confirmAndComplete("11:00")

	doctor, err := f.doctorRepo.Get(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, doctor.Stats.TotalAppointments)
	assert.Equal(t, 1, doctor.Stats.TotalPatients, "returning patient counts once")
	assert.Equal(t, 30000.0, doctor.Stats.TotalIncome)
}

func TestCompleteMonthRollover(t *testing.T) {
	f := newFixture(t)

	complete := func(date, slot string) {
		a := f.book(t, date, slot)
		_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
		require.NoError(t, err)
		_, err = f.svc.Complete(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, &model.CompleteAppointmentRequest{})
		require.NoError(t, err)
	}

	complete("2026-03-15", "10:00")

	// Move the clock into April. The monthly bucket resets while the
	// lifetime total keeps accumulating.
	f.now = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	complete("2026-04-10", "10:00")

	doctor, err := f.doctorRepo.Get(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-04", doctor.Stats.MonthlyIncomeMonth)
	assert.Equal(t, 15000.0, doctor.Stats.MonthlyIncomeAmount)
	assert.Equal(t, 30000.0, doctor.Stats.TotalIncome)
}

func TestAddReview(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")
	_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.Complete(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, &model.CompleteAppointmentRequest{})
	require.NoError(t, err)

	reviewed, err := f.svc.AddReview(context.Background(), a.ID, f.patient.ID, &model.ReviewRequest{Rating: 4, Comment: "très bon accueil"})
	require.NoError(t, err)
	require.NotNil(t, reviewed.ReviewRating)
	assert.Equal(t, 4, *reviewed.ReviewRating)

	doctor, err := f.doctorRepo.Get(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, doctor.Stats.AverageRating)
	assert.Equal(t, 1, doctor.Stats.TotalReviews)

	// A second review on the same appointment is rejected.
	_, err = f.svc.AddReview(context.Background(), a.ID, f.patient.ID, &model.ReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrReviewExists))
}

func TestAddReviewAveraging(t *testing.T) {
	f := newFixture(t)

	review := func(slot string, rating int) {
		a := f.book(t, "2026-03-15", slot)
		_, err := f.svc.SetStatus(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, model.AppointmentStatusConfirmed)
		require.NoError(t, err)
		_, err = f.svc.Complete(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor, &model.CompleteAppointmentRequest{})
		require.NoError(t, err)
		_, err = f.svc.AddReview(context.Background(), a.ID, f.patient.ID, &model.ReviewRequest{Rating: rating})
		require.NoError(t, err)
	}

	review("10:00", 5)
	review("11:00", 4)
	review("12:00", 4)

	doctor, err := f.doctorRepo.Get(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.3, doctor.Stats.AverageRating)
	assert.Equal(t, 3, doctor.Stats.TotalReviews)
}

func TestAddReviewRequiresCompletion(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	_, err := f.svc.AddReview(context.Background(), a.ID, f.patient.ID, &model.ReviewRequest{Rating: 5})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAddReviewWrongPatient(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	_, err := f.svc.AddReview(context.Background(), a.ID, uuid.New(), &model.ReviewRequest{Rating: 5})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestBookedSlots(t *testing.T) {
	f := newFixture(t)
	f.book(t, "2026-03-15", "10:00")
	f.book(t, "2026-03-15", "11:00")
	cancelled := f.book(t, "2026-03-15", "12:00")
	_, err := f.svc.Cancel(context.Background(), cancelled.ID, f.patient.ID, model.RolePatient, "")
	require.NoError(t, err)

	slots, err := f.svc.BookedSlots(context.Background(), f.doctor.ID, "2026-03-15")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10:00", "11:00"}, slots)
}

func TestGetAuthorization(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "2026-03-15", "10:00")

	_, err := f.svc.Get(context.Background(), a.ID, f.patient.ID, model.RolePatient)
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), a.ID, f.doctorUser.ID, model.RoleDoctor)
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), a.ID, uuid.New(), model.RolePatient)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}
