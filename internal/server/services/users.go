// Package services holds account management on top of the user repository
// and the session manager.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/dmitrijs2005/salesdash/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxUserNameLength = 64
)

// SessionRevoker drops every session of a user. *sessions.Manager satisfies it.
type SessionRevoker interface {
	InvalidateAllSessions(ctx context.Context, userID string) (int, error)
}

type UserService struct {
	repo     users.Repository
	hasher   *cryptox.Hasher
	sessions SessionRevoker
	audit    audit.Sink
	logger   logging.Logger
	limiter  *auth.AttemptLimiter
}

type UserOption func(*UserService)

// WithAttemptLimiter counts wrong current passwords in ChangePassword against
// l, keyed by user name. Pass the limiter the session manager uses so that
// login and password change draw from the same budget.
func WithAttemptLimiter(l *auth.AttemptLimiter) UserOption {
	return func(s *UserService) { s.limiter = l }
}

func NewUserService(repo users.Repository, hasher *cryptox.Hasher, sessions SessionRevoker, sink audit.Sink, l logging.Logger, opts ...UserOption) *UserService {
	if sink == nil {
		sink = audit.Discard
	}
	if l == nil {
		l = logging.Nop()
	}
	s := &UserService{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		audit:    sink,
		logger:   l.With("module", "users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active user with a freshly hashed password.
func (s *UserService) Register(ctx context.Context, username, displayName, email, password string) (*models.User, error) {
	if username == "" || utf8.RuneCountInString(username) > MaxUserNameLength {
		return nil, fmt.Errorf("%w: username must be 1-%d characters", common.ErrInvalidInput, MaxUserNameLength)
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}

	user, err = s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("user %q: %w", username, err)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.UserName)
	return user, nil
}

// EnsureUser registers username unless it already exists. It is used to seed
// an initial account at startup.
func (s *UserService) EnsureUser(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.GetUserByLogin(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	return s.Register(ctx, username, username, "", password)
}

// ChangePassword replaces the password of userID after checking the current
// one, then revokes every session of the user.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.limiter.Reserve(user.UserName) {
		s.logger.Warn(ctx, "password change throttled", "user_id", userID)
		return common.ErrTooManyAttempts
	}
	defer s.limiter.Release(user.UserName)

	ok, err := s.hasher.Compare(user.PasswordHash, []byte(oldPassword))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		s.limiter.Fail(user.UserName)
		s.audit.Emit(ctx, audit.Event{
			Type: audit.EventLoginFailed, At: time.Now().UTC(), UserID: userID, Identifier: user.UserName,
			Reason: "bad_current_password", Origin: audit.OriginFrom(ctx),
		})
		return common.ErrBadPassword
	}
	s.limiter.Reset(user.UserName)

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}

	s.emit(ctx, audit.EventPasswordChanged, userID)
	return s.revokeAll(ctx, userID)
}

// SetPassword replaces the password without checking the old one. It is the
// administrator's path.
func (s *UserService) SetPassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}

	s.emit(ctx, audit.EventPasswordChanged, userID)
	return s.revokeAll(ctx, userID)
}

// Deactivate disables the account and revokes all of its sessions.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	if err := s.repo.SetActive(ctx, userID, false); err != nil {
		return fmt.Errorf("error deactivating user: %w", err)
	}
	s.emit(ctx, audit.EventUserDeactivated, userID)
	return s.revokeAll(ctx, userID)
}

func (s *UserService) Activate(ctx context.Context, userID string) error {
	if err := s.repo.SetActive(ctx, userID, true); err != nil {
		return fmt.Errorf("error activating user: %w", err)
	}
	s.logger.Info(ctx, "user activated", "user_id", userID)
	return nil
}

// Lookup returns the user with the given login.
func (s *UserService) Lookup(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetUserByLogin(ctx, username)
}

func (s *UserService) hashPassword(password string) ([]byte, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, common.ErrWeakPassword
	}
	if len(password) > cryptox.MaxPasswordLength {
		return nil, fmt.Errorf("%w: password longer than %d bytes", common.ErrInvalidInput, cryptox.MaxPasswordLength)
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}
	return hash, nil
}

func (s *UserService) revokeAll(ctx context.Context, userID string) error {
	if s.sessions == nil {
		return nil
	}
	if _, err := s.sessions.InvalidateAllSessions(ctx, userID); err != nil {
		return fmt.Errorf("error revoking sessions: %w", err)
	}
	return nil
}

func (s *UserService) emit(ctx context.Context, t audit.EventType, userID string) {
	s.audit.Emit(ctx, audit.Event{Type: t, At: time.Now().UTC(), UserID: userID, Origin: audit.OriginFrom(ctx)})
}
