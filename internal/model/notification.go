package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "pending"
	NotificationStatusSent     NotificationStatus = "sent"
	NotificationStatusFailed   NotificationStatus = "failed"
	NotificationStatusRetrying NotificationStatus = "retrying"
)

type NotificationChannel string

const (
	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelPush  NotificationChannel = "push"
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelInApp NotificationChannel = "in_app"
)

// Notification is a best-effort outbound message. Delivery failures are
// recorded here and never surface to the operation that produced them.
type Notification struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	UserID      uuid.UUID           `json:"user_id" db:"user_id"`
	Channel     NotificationChannel `json:"channel" db:"channel"`
	Recipient   string              `json:"recipient" db:"recipient"`
	Title       string              `json:"title" db:"title"`
	Content     string              `json:"content" db:"content"`
	Data        JSONMap             `json:"data,omitempty" db:"data"`
	Status      NotificationStatus  `json:"status" db:"status"`
	RetryCount  int                 `json:"retry_count" db:"retry_count"`
	LastError   string              `json:"last_error,omitempty" db:"last_error"`
	NextRetryAt *time.Time          `json:"next_retry_at,omitempty" db:"next_retry_at"`
	SentAt      *time.Time          `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// PushEvent is published to the message broker for push delivery. The
// push consumer resolves the user's device tokens by UserID.
type PushEvent struct {
	ID             uuid.UUID `json:"id"`
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Data           JSONMap   `json:"data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
