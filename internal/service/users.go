// Package service holds the use-case orchestrators between the HTTP/WS
// surface and the store, bus and presence layers. Services validate input,
// enforce the role rules, translate repository sentinels into the error
// taxonomy and fire the matching bus and audit events.
package service

import (
	"context"
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-backend/internal/auth"
	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// Username and password bounds. Passwords cap at 72 bytes, the most bcrypt
// will read.
const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
	maxPasswordLen = 72

	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserService covers registration, sessions and profile management.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (models.User, auth.TokenPair, error)
	Login(ctx context.Context, email, password string) (models.User, auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error)
	SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// UserSvc is the production UserService.
type UserSvc struct {
	users  repositories.UserRepository
	hasher auth.PasswordHasher
	tokens *auth.TokenManager
	audit  *telemetry.AuditEmitter
	log    zerolog.Logger
}

// NewUserSvc constructs a UserSvc.
func NewUserSvc(users repositories.UserRepository, hasher auth.PasswordHasher, tokens *auth.TokenManager, audit *telemetry.AuditEmitter, logger zerolog.Logger) *UserSvc {
	return &UserSvc{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
		log:    logger.With().Str("component", "user_service").Logger(),
	}
}

// Register creates an account and signs the first token pair.
func (s *UserSvc) Register(ctx context.Context, username, email, password string) (models.User, auth.TokenPair, error) {
	if err := validateUsername(username); err != nil {
		return models.User{}, auth.TokenPair{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, auth.TokenPair{}, err
	}
	if err := validatePassword(password); err != nil {
		return models.User{}, auth.TokenPair{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, auth.TokenPair{}, err
	}

	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			return models.User{}, auth.TokenPair{}, errs.Conflict(errs.CodeUserExists, "username already taken")
		case errors.Is(err, repositories.ErrEmailTaken):
			return models.User{}, auth.TokenPair{}, errs.Conflict(errs.CodeUserExists, "email already registered")
		}
		return models.User{}, auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.User{}, auth.TokenPair{}, err
	}

	userID := user.ID.String()
	s.audit.Emit(ctx, "info", "user registered", observability.RequestID(ctx), &userID)
	return user, pair, nil
}

// Login verifies the credentials and signs a fresh token pair. The caller
// cannot distinguish a missing account from a wrong password.
func (s *UserSvc) Login(ctx context.Context, email, password string) (models.User, auth.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.audit.Emit(ctx, "warn", "failed login: unknown email", observability.RequestID(ctx), nil)
			return models.User{}, auth.TokenPair{}, errs.Unauthenticated(errs.CodeAuthenticationFailed, "invalid credentials")
		}
		return models.User{}, auth.TokenPair{}, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		userID := user.ID.String()
		s.audit.Emit(ctx, "warn", "failed login: wrong password", observability.RequestID(ctx), &userID)
		return models.User{}, auth.TokenPair{}, errs.Unauthenticated(errs.CodeAuthenticationFailed, "invalid credentials")
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.User{}, auth.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh trades a valid refresh token for a new pair.
func (s *UserSvc) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return auth.TokenPair{}, errs.Unauthenticated(errs.CodeInvalidToken, "unknown account")
		}
		return auth.TokenPair{}, err
	}

	return s.tokens.IssuePair(userID)
}

// GetUser loads one account.
func (s *UserSvc) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, errs.NotFound(errs.CodeUserNotFound, "user not found")
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile patches the caller's display name and contact address.
func (s *UserSvc) UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error) {
	if username == nil && email == nil {
		return models.User{}, errs.Validation("no fields to update")
	}
	if username != nil {
		if err := validateUsername(*username); err != nil {
			return models.User{}, err
		}
	}
	if email != nil {
		if err := validateEmail(*email); err != nil {
			return models.User{}, err
		}
	}

	user, err := s.users.UpdateProfile(ctx, id, username, email)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			return models.User{}, errs.NotFound(errs.CodeUserNotFound, "user not found")
		case errors.Is(err, repositories.ErrUsernameTaken):
			return models.User{}, errs.Conflict(errs.CodeUserExists, "username already taken")
		case errors.Is(err, repositories.ErrEmailTaken):
			return models.User{}, errs.Conflict(errs.CodeUserExists, "email already registered")
		}
		return models.User{}, err
	}
	return user, nil
}

// SearchUsers matches accounts by name or email, paginated.
func (s *UserSvc) SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	if query == "" {
		return nil, errs.Validation("q is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.SearchUsers(ctx, query, limit, offset)
}

// SetStatus moves an account between active, inactive and suspended.
func (s *UserSvc) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !models.ValidUserStatus(status) {
		return errs.Validationf("unknown status %q", status)
	}
	if err := s.users.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return errs.NotFound(errs.CodeUserNotFound, "user not found")
		}
		return err
	}

	userID := id.String()
	s.audit.Emit(ctx, "info", "user status set to "+status, observability.RequestID(ctx), &userID)
	return nil
}

func validateUsername(username string) error {
	length := utf8.RuneCountInString(username)
	if length < minUsernameLen || length > maxUsernameLen {
		return errs.Validationf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return errs.Validation("invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return errs.Validationf("password must be %d-%d characters", minPasswordLen, maxPasswordLen)
	}
	return nil
}
