package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/terangacare/booking-api/internal/model"
)

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, channel, recipient, title, content, data,
			status, retry_count, last_error, next_retry_at, sent_at,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :channel, :recipient, :title, :content, :data,
			:status, :retry_count, :last_error, :next_retry_at, :sent_at,
			:created_at, :updated_at
		)
	`
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, notification *model.Notification) error {
	query := `
		UPDATE notifications
		SET status = :status, retry_count = :retry_count, last_error = :last_error,
		    next_retry_at = :next_retry_at, sent_at = :sent_at, updated_at = :updated_at
		WHERE id = :id
	`
	notification.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
