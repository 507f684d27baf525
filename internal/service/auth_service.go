package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates registration and login flows.
type AuthService struct {
	users       repository.UserRepository
	revocations auth.RevocationStore
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	logger      *zap.Logger
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations auth.RevocationStore
	Logger      *zap.Logger
}

// RegisterInput describes a self-service signup.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		revocations: deps.Revocations,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:  cfg.Auth.BcryptCost,
		logger:      logger,
	}
}

// RegisterUser creates a customer account and signs it in.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, domain.AccessToken, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	errs := fieldErrors{}
	requireText(errs, "name", input.Name, 255)
	requireText(errs, "email", input.Email, 255)
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			errs.add("email", "The email must be a valid email address.")
		}
	}
	switch {
	case input.Password == "":
		errs.add("password", "The password field is required.")
	case len(input.Password) < minPasswordLength:
		errs.add("password", "The password must be at least 8 characters.")
	case input.PasswordConfirmation != "" && input.PasswordConfirmation != input.Password:
		errs.add("password", "The password confirmation does not match.")
	}
	if err := errs.err(); err != nil {
		return nil, domain.AccessToken{}, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, domain.AccessToken{}, emailTaken()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.AccessToken{}, apperrors.MapError(err)
	}

	user, err := s.createUser(ctx, input.Name, input.Email, input.Password, domain.RoleCustomer)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}

	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.AccessToken{}, apperrors.NewInternalError(err)
	}
	return publicUser(user), token, nil
}

// LoginUser authenticates by email and password.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*domain.User, domain.AccessToken, error) {
	email = normalizeEmail(email)
	errs := fieldErrors{}
	requireText(errs, "email", email, 255)
	if password == "" {
		errs.add("password", "The password field is required.")
	}
	if err := errs.err(); err != nil {
		return nil, domain.AccessToken{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.AccessToken{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, domain.AccessToken{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.AccessToken{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.AccessToken{}, apperrors.NewInternalError(err)
	}
	return publicUser(user), token, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revocations == nil || tokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, tokenID, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator when email is set and unknown.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			s.logger.Warn("bootstrap admin email belongs to a non-admin account", zap.String("email", email))
		}
		return publicUser(existing), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError(invalidDataMessage, map[string]any{
			"password": []string{"The admin password must be at least 8 characters."},
		})
	}
	if strings.TrimSpace(name) == "" {
		name = "Admin User"
	}
	user, err := s.createUser(ctx, strings.TrimSpace(name), email, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", email))
	return publicUser(user), nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, emailTaken()
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func emailTaken() error {
	return apperrors.NewConflict("The email has already been taken.", map[string]any{
		"email": []string{"The email has already been taken."},
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
