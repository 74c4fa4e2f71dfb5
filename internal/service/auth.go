package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/auth"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/repository"
)

const MinPasswordLength = 6

// AuthService handles the authentication business logic.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService ×2 (access, refresh)
//
// It never touches cookies or requests; the handler turns an AuthResult into
// cookies.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - access     *auth.TokenService        → short-lived access tokens
//   - refresh    *auth.TokenService        → long-lived refresh tokens
//   - passwords  *auth.PasswordService     → bcrypt hashing for local accounts
type AuthService struct {
	users     repository.UserRepository
	access    *auth.TokenService
	refresh   *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	access *auth.TokenService,
	refresh *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		access:    access,
		refresh:   refresh,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user with both issued tokens so the handler can set
// the cookies and respond in one step.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// Signup creates a local (password) account.
//
// The user ID is chosen here rather than by the repository because the new
// channel's ID is the user ID, and both go into the same insert. The display
// name starts as "@" plus the local part of the email.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	id := xid.New().String()
	localPart, _, _ := strings.Cut(email, "@")
	user := &model.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		SignInMode:   model.SignInPassword,
		Channel: model.Channel{
			ChannelID:   id,
			DisplayName: "@" + localPart,
		},
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "email already registered", Field: "email"}
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks a local account's password. An unknown email and a wrong
// password get the same answer.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	invalid := apperror.ValidationFailed("email", "invalid email or password")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}
	if user.PasswordHash == "" {
		// Google accounts have no password.
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// SignInWithGoogle finds the account for the Google profile's email or
// creates a Google account for it. An existing local account with the same
// email keeps its password mode.
func (s *AuthService) SignInWithGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil || gu.Email == "" {
		return nil, apperror.ValidationFailed("email", "google account has no email")
	}
	email := strings.ToLower(strings.TrimSpace(gu.Email))

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info("user signed in with google", slog.String("userID", user.ID))
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	user = &model.User{
		Email:      email,
		GoogleID:   gu.ID,
		Name:       gu.Name,
		Picture:    gu.Picture,
		SignInMode: model.SignInGoogle,
		Channel: model.Channel{
			DisplayName: gu.Name,
			ProfileURL:  gu.Picture,
		},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}

	s.logger.Info("user signed up with google", slog.String("userID", user.ID))
	return s.issue(user)
}

// Refresh trades a refresh token for a new access token. The password is not
// checked again, but the user must still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperror.Unauthenticated("no refresh token")
	}

	userID, err := s.refresh.Validate(refreshToken)
	if err != nil {
		return "", err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthenticated("user not found")
		}
		return "", fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}

	token, err := s.access.Generate(userID)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating access token: %w", err)
	}
	return token, nil
}

// Profile returns the current user record.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("valid authentication required")
	}
	return s.users.GetUserByID(ctx, userID)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	access, err := s.access.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating access token for %s: %w", user.ID, err)
	}
	refresh, err := s.refresh.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating refresh token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is invalid")
	}
	return email, nil
}
