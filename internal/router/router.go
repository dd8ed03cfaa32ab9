package router

import (
	"github.com/gin-gonic/gin"

	"github.com/terangacare/booking-api/internal/config"
	"github.com/terangacare/booking-api/internal/handler"
	appointmentHandler "github.com/terangacare/booking-api/internal/handler/appointment"
	authHandler "github.com/terangacare/booking-api/internal/handler/auth"
	credentialingHandler "github.com/terangacare/booking-api/internal/handler/credentialing"
	doctorHandler "github.com/terangacare/booking-api/internal/handler/doctor"
	prometheusHandler "github.com/terangacare/booking-api/internal/handler/prometheus"
	"github.com/terangacare/booking-api/internal/middleware"
	"github.com/terangacare/booking-api/internal/model"
)

type Router struct {
	engine         *gin.Engine
	cfg            *config.Config
	auth           *middleware.AuthMiddleware
	healthH        *handler.HealthHandler
	authH          *authHandler.Handler
	appointmentH   *appointmentHandler.Handler
	doctorH        *doctorHandler.Handler
	credentialingH *credentialingHandler.Handler
	prometheusH    *prometheusHandler.Handler
}

func NewRouter(
	cfg *config.Config,
	auth *middleware.AuthMiddleware,
	healthH *handler.HealthHandler,
	authH *authHandler.Handler,
	appointmentH *appointmentHandler.Handler,
	doctorH *doctorHandler.Handler,
	credentialingH *credentialingHandler.Handler,
	prometheusH *prometheusHandler.Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:         gin.New(),
		cfg:            cfg,
		auth:           auth,
		healthH:        healthH,
		authH:          authH,
		appointmentH:   appointmentH,
		doctorH:        doctorH,
		credentialingH: credentialingH,
		prometheusH:    prometheusH,
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup() {
	middleware.RegisterValidations()

	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Recovery())

	if r.cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(r.cfg.RateLimit.RequestsPerSecond, r.cfg.RateLimit.Burst)
		r.engine.Use(limiter.RateLimit())
	}

	r.engine.GET("/health", r.healthH.HealthCheck)
	if r.cfg.Monitoring.PrometheusEnabled {
		r.engine.GET(r.cfg.Monitoring.MetricsPath, r.prometheusH.Handler())
	}

	v1 := r.engine.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", r.authH.Register)
		auth.POST("/login", r.authH.Login)
		auth.POST("/send-code", r.authH.SendVerificationCode)
		auth.POST("/verify-phone", r.authH.VerifyPhone)
		auth.POST("/refresh", r.authH.Refresh)
	}

	// Public doctor discovery.
	doctors := v1.Group("/doctors")
	{
		doctors.GET("/:id", r.doctorH.Get)
		doctors.GET("/:id/slots", r.doctorH.BookedSlots)
	}

	authed := v1.Group("")
	authed.Use(r.auth.Authenticate())

	appointments := authed.Group("/appointments")
	{
		appointments.POST("", r.appointmentH.Create)
		appointments.GET("", r.appointmentH.List)
		appointments.GET("/:id", r.appointmentH.Get)
		appointments.PATCH("/:id/status", r.auth.RequireRole(model.RoleDoctor, model.RoleAdmin), r.appointmentH.UpdateStatus)
		appointments.POST("/:id/confirm", r.auth.RequireRole(model.RoleDoctor, model.RoleAdmin), r.appointmentH.Confirm)
		appointments.POST("/:id/cancel", r.appointmentH.Cancel)
		appointments.POST("/:id/complete", r.auth.RequireRole(model.RoleDoctor, model.RoleAdmin), r.appointmentH.Complete)
		appointments.POST("/:id/review", r.auth.RequireRole(model.RolePatient), r.appointmentH.AddReview)
	}

	requests := authed.Group("/doctor-requests")
	{
		requests.POST("", r.auth.RequireRole(model.RolePatient), r.credentialingH.Submit)
		requests.GET("/me", r.credentialingH.GetMine)
	}

	admin := authed.Group("/admin", r.auth.RequireRole(model.RoleAdmin))
	{
		admin.GET("/doctor-requests", r.credentialingH.List)
		admin.GET("/doctor-requests/stats", r.credentialingH.Stats)
		admin.GET("/doctor-requests/:id", r.credentialingH.Get)
		admin.POST("/doctor-requests/:id/approve", r.credentialingH.Approve)
		admin.POST("/doctor-requests/:id/reject", r.credentialingH.Reject)
	}
}
