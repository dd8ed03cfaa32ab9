package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/terangacare/booking-api/internal/config"
	"github.com/terangacare/booking-api/internal/email"
	"github.com/terangacare/booking-api/internal/handler"
	appointmentHandler "github.com/terangacare/booking-api/internal/handler/appointment"
	authHandler "github.com/terangacare/booking-api/internal/handler/auth"
	credentialingHandler "github.com/terangacare/booking-api/internal/handler/credentialing"
	doctorHandler "github.com/terangacare/booking-api/internal/handler/doctor"
	prometheusHandler "github.com/terangacare/booking-api/internal/handler/prometheus"
	"github.com/terangacare/booking-api/internal/middleware"
	"github.com/terangacare/booking-api/internal/repository/postgres"
	"github.com/terangacare/booking-api/internal/router"
	appointmentService "github.com/terangacare/booking-api/internal/service/appointment"
	"github.com/terangacare/booking-api/internal/service/audit"
	authService "github.com/terangacare/booking-api/internal/service/auth"
	credentialingService "github.com/terangacare/booking-api/internal/service/credentialing"
	notificationService "github.com/terangacare/booking-api/internal/service/notification"
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

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	requestRepo := postgres.NewDoctorRequestRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Message broker for push and in-app notifications
	broker, err := redisBroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), lg.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Services
	auditSvc := audit.NewService(auditRepo)
	emailSvc := email.NewService(cfg.SMTP.ToEmailConfig())
	smsSender := sms.NewConsoleSender(*lg.Zerolog())
	notifier := notificationService.NewService(notificationRepo, smsSender, emailSvc, broker, auditSvc)
	authSvc := authService.NewService(userRepo, notifier, cfg.JWT)
	appointmentSvc := appointmentService.NewService(appointmentRepo, doctorRepo, userRepo, notifier, auditSvc)
	credentialingSvc := credentialingService.NewService(requestRepo, doctorRepo, userRepo, notifier, auditSvc, lg.Zerolog())

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	healthH := handler.NewHealthHandler(db)
	authH := authHandler.NewHandler(authSvc)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc)
	doctorH := doctorHandler.NewHandler(doctorRepo, appointmentSvc)
	credentialingH := credentialingHandler.NewHandler(credentialingSvc)
	prometheusH := prometheusHandler.New()

	r := router.NewRouter(cfg, authMiddleware, healthH, authH, appointmentH, doctorH, credentialingH, prometheusH)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
