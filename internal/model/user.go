package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// User is a marketplace account. Role promotion to doctor happens only
// through an approved credentialing request.
type User struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	FirstName       string         `json:"first_name" db:"first_name"`
	LastName        string         `json:"last_name" db:"last_name"`
	Phone           string         `json:"phone" db:"phone"`
	Email           string         `json:"email,omitempty" db:"email"`
	PasswordHash    string         `json:"-" db:"password_hash"`
	Role            Role           `json:"role" db:"role"`
	IsActive        bool           `json:"is_active" db:"is_active"`
	IsPhoneVerified bool           `json:"is_phone_verified" db:"is_phone_verified"`
	Language        string         `json:"language" db:"language"`
	FCMTokens       pq.StringArray `json:"-" db:"fcm_tokens"`
	LastLogin       *time.Time     `json:"last_login,omitempty" db:"last_login"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,max=50"`
	LastName  string `json:"last_name" binding:"required,max=50"`
	Phone     string `json:"phone" binding:"required,sn_phone"`
	Email     string `json:"email" binding:"omitempty,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Language  string `json:"language" binding:"omitempty,oneof=fr wo ar en"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,len=6"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
