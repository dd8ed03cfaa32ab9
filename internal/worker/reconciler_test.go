package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/credentialing"
)

type stubRequestRepo struct {
	repository.DoctorRequestRepository

	unprovisioned []*model.DoctorRequest
	listErr       error
	gotLimit      int
}

func (s *stubRequestRepo) ListUnprovisioned(ctx context.Context, limit int) ([]*model.DoctorRequest, error) {
	s.gotLimit = limit
	return s.unprovisioned, s.listErr
}

type stubCredentialing struct {
	credentialing.Service

	provisioned []uuid.UUID
	failFor     uuid.UUID
}

func (s *stubCredentialing) Provision(ctx context.Context, request *model.DoctorRequest) (*model.Doctor, error) {
	if request.ID == s.failFor {
		return nil, errors.New("provision failed")
	}
	s.provisioned = append(s.provisioned, request.ID)
	return &model.Doctor{UserID: request.UserID}, nil
}

func newTestReconciler(repo repository.DoctorRequestRepository, svc credentialing.Service) *Reconciler {
	logger := zerolog.Nop()
	return NewReconciler(repo, svc, ReconcilerConfig{BatchSize: 10}, &logger)
}

func TestProcessBatchProvisionsBacklog(t *testing.T) {
	first := &model.DoctorRequest{ID: uuid.New(), UserID: uuid.New()}
	second := &model.DoctorRequest{ID: uuid.New(), UserID: uuid.New()}
	repo := &stubRequestRepo{unprovisioned: []*model.DoctorRequest{first, second}}
	svc := &stubCredentialing{}

	r := newTestReconciler(repo, svc)
	require.NoError(t, r.processBatch(context.Background()))

	assert.Equal(t, 10, repo.gotLimit)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, svc.provisioned)
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	broken := &model.DoctorRequest{ID: uuid.New(), UserID: uuid.New()}
	healthy := &model.DoctorRequest{ID: uuid.New(), UserID: uuid.New()}
	repo := &stubRequestRepo{unprovisioned: []*model.DoctorRequest{broken, healthy}}
	svc := &stubCredentialing{failFor: broken.ID}

	r := newTestReconciler(repo, svc)
	require.NoError(t, r.processBatch(context.Background()))

	assert.Equal(t, []uuid.UUID{healthy.ID}, svc.provisioned)
}

func TestProcessBatchPropagatesListError(t *testing.T) {
	repo := &stubRequestRepo{listErr: errors.New("db down")}
	svc := &stubCredentialing{}

	r := newTestReconciler(repo, svc)
	assert.Error(t, r.processBatch(context.Background()))
	assert.Empty(t, svc.provisioned)
}

func TestProcessBatchStopsOnCancel(t *testing.T) {
	repo := &stubRequestRepo{unprovisioned: []*model.DoctorRequest{
		{ID: uuid.New(), UserID: uuid.New()},
	}}
	svc := &stubCredentialing{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestReconciler(repo, svc)
	assert.ErrorIs(t, r.processBatch(ctx), context.Canceled)
	assert.Empty(t, svc.provisioned)
}
