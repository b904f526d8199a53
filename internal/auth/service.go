package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/store"
)

// Limits on account fields.
const (
	MaxDisplayNameLength = 50
	MaxUsernameLength    = 32
)

// SessionIssuer creates and revokes sessions.
type SessionIssuer interface {
	Create(ctx context.Context, userID int64) (*domain.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Service handles login, logout and account management.
type Service struct {
	users    store.UserRepository
	sessions SessionIssuer
	hasher   *Hasher
}

// NewService creates an auth Service.
func NewService(users store.UserRepository, sessions SessionIssuer, hasher *Hasher) *Service {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	return &Service{users: users, sessions: sessions, hasher: hasher}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"session_token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Login checks credentials and opens a session. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		s.hasher.burn(password)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("User logged in", "user_id", user.ID)
	return &LoginResult{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

// Logout revokes token. It succeeds for unknown tokens.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// CurrentUser loads the account behind an authenticated principal.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(user.PasswordHash, current) {
		return domain.NewValidationError("current_password", "incorrect")
	}
	if err := validatePassword(next); err != nil {
		return domain.NewValidationError("new_password", err.Error())
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

// ChangeDisplayName trims name and stores it. It must be 1 to 50 characters.
func (s *Service) ChangeDisplayName(ctx context.Context, userID int64, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("display_name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return nil, domain.NewValidationError("display_name", fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength))
	}

	if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return s.CurrentUser(ctx, userID)
}

// NewUser is the input for creating an account.
type NewUser struct {
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// CreateUser creates an account. A taken username yields domain.ErrConflict.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.NewValidationError("username", "must not be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, domain.NewValidationError("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength))
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, domain.NewValidationError("password", err.Error())
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	if utf8.RuneCountInString(display) > MaxDisplayNameLength {
		return nil, domain.NewValidationError("display_name", fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  display,
		Role:         in.Role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("User created", "user_id", user.ID, "role", user.Role.String())
	return user, nil
}

// DeleteUser removes target on behalf of actor. Actors cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *domain.Principal, targetID int64) error {
	if err := Check(actor, RequireRole(domain.RoleAdmin), ForbidSelf(targetID)); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, targetID); err != nil {
		return err
	}
	slog.Info("User deleted", "user_id", targetID, "by", actor.UserID)
	return nil
}

// ResetPassword sets a new password for targetID without knowing the old one.
func (s *Service) ResetPassword(ctx context.Context, targetID int64, password string) error {
	if err := validatePassword(password); err != nil {
		return domain.NewValidationError("new_password", err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, targetID, hash)
}

// EnsureBootstrapAdmin creates an admin account when no accounts exist.
// It reports whether an account was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, NewUser{Username: username, Password: password, Role: domain.RoleAdmin}); err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	return true, nil
}
