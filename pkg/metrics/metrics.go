package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AppointmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_created_total",
			Help: "Total number of appointments booked",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_status_transitions_total",
			Help: "Appointment status transitions by target status",
		},
		[]string{"to"},
	)

	ReviewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_reviews_total",
			Help: "Total number of appointment reviews submitted",
		},
	)

	CredentialingReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentialing_reviews_total",
			Help: "Credentialing requests reviewed by decision",
		},
		[]string{"decision"},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Notification deliveries that exhausted retries",
		},
	)

	ReconcilerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Provisioning reconciler poll cycles",
		},
	)
)
