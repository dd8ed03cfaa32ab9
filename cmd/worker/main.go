package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/terangacare/booking-api/internal/config"
	"github.com/terangacare/booking-api/internal/email"
	"github.com/terangacare/booking-api/internal/repository/postgres"
	"github.com/terangacare/booking-api/internal/service/audit"
	credentialingService "github.com/terangacare/booking-api/internal/service/credentialing"
	notificationService "github.com/terangacare/booking-api/internal/service/notification"
	"github.com/terangacare/booking-api/internal/worker"
	"github.com/terangacare/booking-api/pkg/logger"
	redisBroker "github.com/terangacare/booking-api/pkg/messaging/redis"
	"github.com/terangacare/booking-api/pkg/sms"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	requestRepo := postgres.NewDoctorRequestRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	broker, err := redisBroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), lg.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	auditSvc := audit.NewService(auditRepo)
	emailSvc := email.NewService(cfg.SMTP.ToEmailConfig())
	smsSender := sms.NewConsoleSender(*lg.Zerolog())
	notifier := notificationService.NewService(notificationRepo, smsSender, emailSvc, broker, auditSvc)
	credentialingSvc := credentialingService.NewService(requestRepo, doctorRepo, userRepo, notifier, auditSvc, lg.Zerolog())

	reconciler := worker.NewReconciler(requestRepo, credentialingSvc, worker.ReconcilerConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
	}, lg.Zerolog())

	ctx, cancel := context.WithCancel(context.Background())
	go reconciler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")

	cancel()
	<-reconciler.Done()
	log.Info().Msg("worker exited properly")
}
