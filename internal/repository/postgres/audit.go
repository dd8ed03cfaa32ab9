package postgres

import (
	"context"
	"fmt"

	"github.com/terangacare/booking-api/internal/model"
)

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, action, entity_type, entity_id, changes, metadata, created_at
		) VALUES (
			:id, :user_id, :action, :entity_type, :entity_id, :changes, :metadata, :created_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error) {
	query := `
		SELECT id, user_id, action, entity_type, entity_id, changes, metadata, created_at
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if v, ok := filters["user_id"]; ok {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, v)
		argCount++
	}
	if v, ok := filters["entity_type"]; ok {
		query += fmt.Sprintf(" AND entity_type = $%d", argCount)
		args = append(args, v)
		argCount++
	}
	if v, ok := filters["action"]; ok {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, v)
		argCount++
	}

	query += " ORDER BY created_at DESC LIMIT 500"

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
