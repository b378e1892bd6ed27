package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Matej398/crypto-folio/internal/config"
	apperrors "github.com/Matej398/crypto-folio/internal/errors"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/storage"
)

// UserRepository interface for user account operations
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// SessionStore interface for opaque session tokens
type SessionStore interface {
	SetSession(ctx context.Context, token string, userID int64, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (int64, error)
	DeleteSession(ctx context.Context, token string) error
}

// Session is an authenticated session handed to the client
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService authenticates the account and manages sessions. Failed
// lookups and wrong passwords collapse into a single invalid-credentials
// error so login responses never reveal which part was wrong.
type AuthService struct {
	users      UserRepository
	sessions   SessionStore
	sessionTTL time.Duration
	defaults   config.AuthConfig
	logger     *logging.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, sessions SessionStore, cfg config.AuthConfig, logger *logging.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: cfg.SessionTTL,
		defaults:   cfg,
		logger:     logger,
	}
}

// Login verifies credentials and issues a session token. On a fresh
// database the configured default account is created the first time its
// email is used.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("credentials", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		user, err = s.ensureDefaultUser(ctx, email)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, apperrors.NewPersistenceError("get user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	token := uuid.NewString()
	if err := s.sessions.SetSession(ctx, token, user.ID, s.sessionTTL); err != nil {
		return nil, apperrors.NewPersistenceError("create session", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")

	return &Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}, nil
}

// Logout invalidates a session token. An already-expired token is not an
// error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return apperrors.NewPersistenceError("delete session", err)
	}
	return nil
}

// Authenticate resolves a session token to a user id
func (s *AuthService) Authenticate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, apperrors.NewUnauthorizedError("missing session token")
	}
	userID, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return 0, apperrors.NewUnauthorizedError("session expired or invalid")
	}
	if err != nil {
		return 0, apperrors.NewPersistenceError("get session", err)
	}
	return userID, nil
}

// ChangePassword verifies the current password and stores a new hash
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return apperrors.NewValidationError("newPassword", "password must be at least 8 characters")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.NewPersistenceError("get user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return apperrors.NewUnauthorizedError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.NewInternalError("failed to hash password", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return apperrors.NewPersistenceError("update password", err)
	}

	s.logger.WithField("user_id", userID).Info("Password changed")
	return nil
}

// ensureDefaultUser creates the bootstrap account when the configured
// default email logs in against an empty users table. Any other unknown
// email fails as invalid credentials.
func (s *AuthService) ensureDefaultUser(ctx context.Context, email string) (*models.User, error) {
	if email != strings.ToLower(s.defaults.DefaultEmail) {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.defaults.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash default password", err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return nil, apperrors.NewPersistenceError("create default user", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Default account created")
	return user, nil
}
