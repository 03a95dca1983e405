package auth

import (
	"context"
	"errors"
	"fmt"

	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service signs users up, in and out.
type Service struct {
	users    ports.UserStore
	sessions SessionStore
	logger   *log.Logger
}

func NewService(users ports.UserStore, sessions SessionStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{users: users, sessions: sessions, logger: logger.WithComponent(log.ComponentAuth)}
}

// SignUp registers a new account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (core.User, string, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, "", err
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.User{}, "", err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, "", err
	}
	u, err := s.users.CreateUser(ctx, core.User{Email: email, PasswordHash: hash})
	if err != nil {
		return core.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return core.User{}, "", err
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, u.ID, log.FieldOperation, log.OpSignUp)
	return u, token, nil
}

// SignIn checks the credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (core.User, string, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, "", ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return core.User{}, "", ErrInvalidCredentials
		}
		return core.User{}, "", fmt.Errorf("load user: %w", err)
	}

	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return core.User{}, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "Sign in rejected", log.FieldUserID, u.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return core.User{}, "", ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return core.User{}, "", err
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID, log.FieldOperation, log.OpSignIn)
	return u, token, nil
}

// SignOut ends the session behind token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (core.User, error) {
	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return core.User{}, ErrSessionNotFound
		}
		return core.User{}, fmt.Errorf("load session user: %w", err)
	}
	return u, nil
}
