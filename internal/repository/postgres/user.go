package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/terangacare/booking-api/pkg/errors"

	"github.com/terangacare/booking-api/internal/model"
)

const userColumns = `
	id, first_name, last_name, phone, email, password_hash, role,
	is_active, is_phone_verified, language, fcm_tokens, last_login,
	created_at, updated_at, deleted_at
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (
			:id, :first_name, :last_name, :phone, :email, :password_hash, :role,
			:is_active, :is_phone_verified, :language, :fcm_tokens, :last_login,
			:created_at, :updated_at, :deleted_at
		)
	`
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if uniqueViolation(err, "users_phone_key") {
			return apperrors.AlreadyExists("account with this phone number")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	var user model.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1 AND deleted_at IS NULL`

	var user model.User
	err := r.db.GetContext(ctx, &user, query, phone)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = :first_name, last_name = :last_name, email = :email,
		    language = :language, fcm_tokens = :fcm_tokens, last_login = :last_login,
		    is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`
	user.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}
	return nil
}

func (r *userRepository) SetPhoneVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	query := `UPDATE users SET is_phone_verified = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, verified, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set phone verified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}
	return nil
}

func (r *userRepository) SetRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	return r.setRole(ctx, r.db, id, role)
}

func (r *userRepository) SetRoleTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, role model.Role) error {
	return r.setRole(ctx, tx, id, role)
}

func (r *userRepository) setRole(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, role model.Role) error {
	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := ext.ExecContext(ctx, query, role, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}
	return nil
}
