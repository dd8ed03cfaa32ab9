package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terangacare/booking-api/internal/email"
	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/audit"
	"github.com/terangacare/booking-api/pkg/messaging"
	"github.com/terangacare/booking-api/pkg/metrics"
	"github.com/terangacare/booking-api/pkg/sms"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second

	pushChannel = "push"
)

// Service delivers best-effort notifications. Delivery never blocks or
// fails the operation that triggered it.
type Service interface {
	Send(ctx context.Context, notification *model.Notification) error
	SendSMS(ctx context.Context, user *model.User, content string)
	SendPush(ctx context.Context, user *model.User, title, body string, data model.JSONMap)
}

type service struct {
	repo      repository.NotificationRepository
	smsSender sms.Sender
	emailSvc  email.Service
	broker    messaging.Broker
	auditor   *audit.Service
}

func NewService(repo repository.NotificationRepository, smsSender sms.Sender, emailSvc email.Service, broker messaging.Broker, auditor *audit.Service) Service {
	return &service{
		repo:      repo,
		smsSender: smsSender,
		emailSvc:  emailSvc,
		broker:    broker,
		auditor:   auditor,
	}
}

func (s *service) Send(ctx context.Context, notification *model.Notification) error {
	if err := s.validateNotification(notification); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = time.Now()
	notification.Status = model.NotificationStatusPending

	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	// Process notification asynchronously
	go s.processNotification(context.Background(), notification)

	return nil
}

// SendSMS fires an sms to the user's phone, best-effort. Failures are
// recorded on the notification row and audited, never returned.
func (s *service) SendSMS(ctx context.Context, user *model.User, content string) {
	n := &model.Notification{
		UserID:    user.ID,
		Channel:   model.NotificationChannelSMS,
		Recipient: user.Phone,
		Content:   content,
	}
	if err := s.Send(ctx, n); err != nil {
		s.auditor.Log(ctx, user.ID, "notification_failed", "notification", n.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"error": err.Error()},
		})
	}
}

// SendPush publishes a push event for the user's registered device
// tokens. A user with no tokens is skipped silently.
func (s *service) SendPush(ctx context.Context, user *model.User, title, body string, data model.JSONMap) {
	if len(user.FCMTokens) == 0 {
		return
	}
	n := &model.Notification{
		UserID:    user.ID,
		Channel:   model.NotificationChannelPush,
		Recipient: user.Phone,
		Title:     title,
		Content:   body,
		Data:      data,
	}
	if err := s.Send(ctx, n); err != nil {
		s.auditor.Log(ctx, user.ID, "notification_failed", "notification", n.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"error": err.Error()},
		})
	}
}

func (s *service) processNotification(ctx context.Context, notification *model.Notification) {
	var err error
	switch notification.Channel {
	case model.NotificationChannelSMS:
		err = s.smsSender.Send(ctx, notification.Recipient, notification.Content)
	case model.NotificationChannelPush:
		err = s.publishPush(ctx, notification)
	case model.NotificationChannelEmail:
		err = s.emailSvc.SendCustom(ctx, notification.Recipient, notification.Title, notification.Content)
	case model.NotificationChannelInApp:
		err = s.broker.Publish(ctx, "notifications", notification)
	default:
		err = fmt.Errorf("unsupported channel: %s", notification.Channel)
	}

	if err != nil {
		s.handleError(ctx, notification, err)
		return
	}

	now := time.Now()
	notification.Status = model.NotificationStatusSent
	notification.SentAt = &now

	if err := s.repo.Update(ctx, notification); err != nil {
		s.auditor.Log(ctx, notification.UserID, "update_failed", "notification", notification.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"error": err.Error()},
		})
	}
}

func (s *service) publishPush(ctx context.Context, notification *model.Notification) error {
	event := &model.PushEvent{
		ID:             uuid.New(),
		NotificationID: notification.ID,
		UserID:         notification.UserID,
		Title:          notification.Title,
		Body:           notification.Content,
		Data:           notification.Data,
		CreatedAt:      time.Now(),
	}
	return s.broker.Publish(ctx, pushChannel, event)
}

func (s *service) handleError(ctx context.Context, notification *model.Notification, err error) {
	notification.RetryCount++
	notification.LastError = err.Error()

	if notification.RetryCount >= maxRetries {
		notification.Status = model.NotificationStatusFailed
		metrics.NotificationFailures.Inc()
	} else {
		notification.Status = model.NotificationStatusRetrying
		next := time.Now().Add(retryDelay * time.Duration(notification.RetryCount))
		notification.NextRetryAt = &next
	}

	if updateErr := s.repo.Update(ctx, notification); updateErr != nil {
		s.auditor.Log(ctx, notification.UserID, "update_failed", "notification", notification.ID, &audit.LogOptions{
			Metadata: map[string]interface{}{"error": updateErr.Error()},
		})
		return
	}

	s.auditor.Log(ctx, notification.UserID, "send_failed", "notification", notification.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"error":       err.Error(),
			"retry_count": notification.RetryCount,
			"next_retry":  notification.NextRetryAt,
		},
	})
}

func (s *service) validateNotification(notification *model.Notification) error {
	if notification.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if notification.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if notification.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if notification.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}
