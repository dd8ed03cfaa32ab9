package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/terangacare/booking-api/internal/config"
	"github.com/terangacare/booking-api/internal/model"
	"github.com/terangacare/booking-api/internal/repository"
	"github.com/terangacare/booking-api/internal/service/notification"
	apperrors "github.com/terangacare/booking-api/pkg/errors"
)

const (
	bcryptCost       = 12
	verificationTTL  = 10 * time.Minute
	verificationBase = 1000000
)

// Claims carried by access and refresh tokens.
type Claims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.User, *model.TokenPair, error)
	SendVerificationCode(ctx context.Context, phone string) error
	VerifyPhone(ctx context.Context, req *model.VerifyPhoneRequest) error
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type service struct {
	userRepo repository.UserRepository
	notifier notification.Service
	cfg      config.JWTConfig
	codes    *gocache.Cache
}

func NewService(userRepo repository.UserRepository, notifier notification.Service, cfg config.JWTConfig) Service {
	return &service{
		userRepo: userRepo,
		notifier: notifier,
		cfg:      cfg,
		codes:    gocache.New(verificationTTL, 2*verificationTTL),
	}
}

func (s *service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	language := req.Language
	if language == "" {
		language = "fr"
	}

	user := &model.User{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         model.RolePatient,
		IsActive:     true,
		Language:     language,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.SendVerificationCode(ctx, user.Phone); err != nil {
		// Registration stands; the code can be re-requested.
		return user, nil
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, req *model.LoginRequest) (*model.User, *model.TokenPair, error) {
	user, err := s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized(nil)
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, apperrors.Forbidden("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized(nil)
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

func (s *service) SendVerificationCode(ctx context.Context, phone string) error {
	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if user.IsPhoneVerified {
		return apperrors.NewValidation("phone is already verified")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	s.codes.Set(phone, code, verificationTTL)

	s.notifier.SendSMS(ctx, user, fmt.Sprintf("Votre code de vérification est %s", code))
	return nil
}

func (s *service) VerifyPhone(ctx context.Context, req *model.VerifyPhoneRequest) error {
	stored, found := s.codes.Get(req.Phone)
	if !found || stored.(string) != req.Code {
		return apperrors.NewValidation("invalid or expired verification code")
	}
	s.codes.Delete(req.Phone)

	user, err := s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return err
	}
	return s.userRepo.SetPhoneVerified(ctx, user.ID, true)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.parseToken(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	// Role may have changed since the token was issued, credentialing
	// promotions in particular.
	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("account is deactivated")
	}
	return s.generateTokens(user)
}

func (s *service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parseToken(tokenString, s.cfg.Secret)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}

func (s *service) generateTokens(user *model.User) (*model.TokenPair, error) {
	access, err := s.signToken(user, s.cfg.Secret, time.Duration(s.cfg.ExpiryHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.signToken(user, s.cfg.RefreshSecret, time.Duration(s.cfg.RefreshExpiryHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) signToken(user *model.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *service) parseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationBase))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
