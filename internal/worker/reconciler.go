package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/credentialing"
	"github.com/terangacare/booking-api/pkg/metrics"
)

type ReconcilerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Reconciler drains approved credentialing requests that have no doctor
// profile. Approval is transactional so the backlog is normally empty;
// this covers restored backups and manual database edits.
type Reconciler struct {
	repo    repository.DoctorRequestRepository
	svc     credentialing.Service
	config  ReconcilerConfig
	logger  *zerolog.Logger
	stopped chan struct{}
}

func NewReconciler(repo repository.DoctorRequestRepository, svc credentialing.Service, config ReconcilerConfig, logger *zerolog.Logger) *Reconciler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &Reconciler{
		repo:    repo,
		svc:     svc,
		config:  config,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	defer close(r.stopped)

	r.logger.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int("batch_size", r.config.BatchSize).
		Msg("starting provisioning reconciler")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("stopping provisioning reconciler")
			return
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error().Err(err).Msg("reconciler batch failed")
			}
		}
	}
}

// Done is closed once Start has returned.
func (r *Reconciler) Done() <-chan struct{} {
	return r.stopped
}

func (r *Reconciler) processBatch(ctx context.Context) error {
	metrics.ReconcilerRuns.Inc()

	requests, err := r.repo.ListUnprovisioned(ctx, r.config.BatchSize)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}

	r.logger.Warn().Int("count", len(requests)).Msg("found approved requests without doctor profiles")

	for _, request := range requests {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := r.svc.Provision(ctx, request); err != nil {
			r.logger.Error().
				Err(err).
				Str("request_id", request.ID.String()).
				Msg("failed to provision doctor profile")
			continue
		}
		r.logger.Info().
			Str("request_id", request.ID.String()).
			Str("user_id", request.UserID.String()).
			Msg("reconciled doctor profile")
	}
	return nil
}
