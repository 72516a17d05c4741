package sessions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/dmitrijs2005/salesdash/internal/timex"
)

// DefaultLifetime is the idle timeout used when none is configured.
const DefaultLifetime = 30 * time.Minute

// Manager verifies credentials and owns the lifecycle of sessions. It is
// safe for concurrent use.
type Manager struct {
	store    Store
	users    UserDirectory
	hasher   *cryptox.Hasher
	lifetime time.Duration
	sliding  bool
	now      timex.Clock
	limiter  *auth.AttemptLimiter
	audit    audit.Sink
	logger   logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLifetime sets the session lifetime. Non-positive values are ignored.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithSlidingExpiration controls whether each validated request pushes the
// expiry to now + lifetime.
func WithSlidingExpiration(on bool) Option {
	return func(m *Manager) { m.sliding = on }
}

func WithClock(c timex.Clock) Option {
	return func(m *Manager) { m.now = c }
}

func WithLimiter(l *auth.AttemptLimiter) Option {
	return func(m *Manager) { m.limiter = l }
}

func WithAudit(s audit.Sink) Option {
	return func(m *Manager) { m.audit = s }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l.With("module", "sessions") }
}

func NewManager(store Store, users UserDirectory, hasher *cryptox.Hasher, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		users:    users,
		hasher:   hasher,
		lifetime: DefaultLifetime,
		sliding:  true,
		now:      timex.RealClock,
		audit:    audit.Discard,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lifetime returns the configured session lifetime.
func (m *Manager) Lifetime() time.Duration { return m.lifetime }

// VerifyCredentials checks identifier and password and, on success, issues a
// new session. Unknown and deactivated users cost the same bcrypt work as a
// wrong password. The caller bounds latency through ctx; the component never
// retries a failed check.
func (m *Manager) VerifyCredentials(ctx context.Context, identifier, password string) (*models.Session, error) {
	if identifier == "" || password == "" {
		m.rejected(ctx, identifier, "", "invalid_input")
		return nil, fmt.Errorf("%w: identifier and password are required", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		m.rejected(ctx, identifier, "", "cancelled")
		return nil, err
	}

	// The slot is held until the outcome is known, so parallel guesses count
	// against the limit while their hashes are still being compared.
	if !m.limiter.Reserve(identifier) {
		m.emit(ctx, audit.Event{Type: audit.EventLoginThrottled, Identifier: identifier})
		return nil, common.ErrTooManyAttempts
	}
	defer m.limiter.Release(identifier)

	user, err := m.users.FindUser(ctx, identifier)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		m.logger.Error(ctx, "user lookup failed", "identifier", identifier, "error", err)
		m.rejected(ctx, identifier, "", "store_error")
		return nil, common.NewStoreError("find user", err)
	}

	if err != nil || user == nil || !user.Active {
		if err := m.compareDummy(ctx, password); err != nil {
			m.rejected(ctx, identifier, "", "cancelled")
			return nil, err
		}
		m.failed(ctx, identifier, "", "unknown_user")
		return nil, common.ErrUnknownUser
	}

	ok, err := m.compare(ctx, user.PasswordHash, password)
	if err != nil {
		if ctx.Err() != nil {
			m.rejected(ctx, identifier, user.ID, "cancelled")
			return nil, err
		}
		m.logger.Error(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		m.rejected(ctx, identifier, user.ID, "internal_error")
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if !ok {
		m.failed(ctx, identifier, user.ID, "bad_password")
		return nil, common.ErrBadPassword
	}

	s, err := m.issue(ctx, user.ID)
	if err != nil {
		m.rejected(ctx, identifier, user.ID, "store_error")
		return nil, err
	}

	if err := m.confirm(ctx, identifier, s, user); err != nil {
		return nil, err
	}
	m.limiter.Reset(identifier)

	m.logger.Info(ctx, "session created", "user_id", user.ID, "expires_at", s.ExpiresAt)
	m.emit(ctx, audit.Event{Type: audit.EventLoginSucceeded, UserID: user.ID, Identifier: identifier})
	return s, nil
}

// ValidateSession returns the owner of token when the session is valid,
// refreshing its last-activity time and, with sliding expiration, its expiry.
// Expired sessions and sessions of deactivated users are removed on access.
func (m *Manager) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrSessionNotFound
	}

	now := m.now()
	var extendTo time.Time
	if m.sliding {
		extendTo = now.Add(m.lifetime)
	}

	s, err := m.store.Refresh(ctx, token, now, extendTo)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.ErrSessionNotFound
	case errors.Is(err, common.ErrSessionExpired):
		m.emit(ctx, audit.Event{Type: audit.EventSessionExpired})
		return nil, common.ErrSessionExpired
	case err != nil:
		m.logger.Error(ctx, "session refresh failed", "error", err)
		return nil, common.NewStoreError("refresh session", err)
	}

	user, err := m.users.GetUser(ctx, s.UserID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		m.logger.Error(ctx, "user lookup failed", "user_id", s.UserID, "error", err)
		return nil, common.NewStoreError("get user", err)
	}
	if err != nil || user == nil || !user.Active {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.Error(ctx, "removing session of inactive user failed", "user_id", s.UserID, "error", err)
		}
		m.emit(ctx, audit.Event{Type: audit.EventSessionRevoked, UserID: s.UserID, Reason: "user_deactivated"})
		return nil, common.ErrUserDeactivated
	}

	return user, nil
}

// InvalidateSession logs token out. It is idempotent.
func (m *Manager) InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.NewStoreError("get session", err)
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return common.NewStoreError("delete session", err)
	}
	m.emit(ctx, audit.Event{Type: audit.EventSessionRevoked, UserID: s.UserID, Reason: "logout"})
	return nil
}

// InvalidateAllSessions removes every session of userID. It is called on
// password change and deactivation.
func (m *Manager) InvalidateAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := m.store.DeleteByUser(ctx, userID)
	if err != nil {
		m.logger.Error(ctx, "bulk session revocation failed", "user_id", userID, "error", err)
		return n, common.NewStoreError("delete user sessions", err)
	}
	m.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	m.emit(ctx, audit.Event{Type: audit.EventSessionsRevokedAll, UserID: userID, Count: n})
	return n, nil
}

// SweepExpired removes every expired session and returns how many were
// removed. It also forgets stale failed-attempt records.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.store.SweepExpired(ctx, m.now())
	if err != nil {
		return n, common.NewStoreError("sweep sessions", err)
	}
	m.limiter.Prune()
	if n > 0 {
		m.emit(ctx, audit.Event{Type: audit.EventSessionsSwept, Count: n})
	}
	return n, nil
}

func (m *Manager) issue(ctx context.Context, userID string) (*models.Session, error) {
	token, err := common.MakeRandHexString(common.SessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: token generation: %v", common.ErrorInternal, err)
	}

	now := m.now()
	s := &models.Session{
		Token:      token,
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.lifetime),
		LastSeenAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		m.logger.Error(ctx, "session create failed", "user_id", userID, "error", err)
		return nil, common.NewStoreError("create session", err)
	}
	return s, nil
}

// confirm re-reads the user after the session is stored. A password change or
// deactivation that landed while the hash was being compared revokes all
// sessions before or after Create; in the second case the new session is only
// caught here, because the directory then already shows the new state.
func (m *Manager) confirm(ctx context.Context, identifier string, s *models.Session, verified *models.User) error {
	current, err := m.users.GetUser(ctx, verified.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		m.logger.Error(ctx, "user recheck failed", "user_id", verified.ID, "error", err)
		m.discard(ctx, s)
		m.rejected(ctx, identifier, verified.ID, "store_error")
		return common.NewStoreError("get user", err)
	}

	switch {
	case err != nil || current == nil || !current.Active:
		m.discard(ctx, s)
		m.rejected(ctx, identifier, verified.ID, "user_deactivated")
		return common.ErrUnknownUser
	case !bytes.Equal(current.PasswordHash, verified.PasswordHash):
		m.discard(ctx, s)
		m.rejected(ctx, identifier, verified.ID, "credentials_changed")
		return common.ErrBadPassword
	}
	return nil
}

// discard removes a session that was stored but must not be handed out.
func (m *Manager) discard(ctx context.Context, s *models.Session) {
	if err := m.store.Delete(context.WithoutCancel(ctx), s.Token); err != nil {
		m.logger.Error(ctx, "removing unconfirmed session failed", "user_id", s.UserID, "error", err)
	}
}

func (m *Manager) failed(ctx context.Context, identifier, userID, reason string) {
	m.limiter.Fail(identifier)
	m.rejected(ctx, identifier, userID, reason)
}

// rejected records a failed login without counting it against the limiter.
func (m *Manager) rejected(ctx context.Context, identifier, userID, reason string) {
	m.emit(ctx, audit.Event{Type: audit.EventLoginFailed, Identifier: identifier, UserID: userID, Reason: reason})
}

func (m *Manager) emit(ctx context.Context, e audit.Event) {
	e.At = m.now()
	e.Origin = audit.OriginFrom(ctx)
	m.audit.Emit(ctx, e)
}

type compareResult struct {
	ok  bool
	err error
}

// compare runs the bcrypt comparison off the caller's goroutine so that a
// context deadline returns promptly; the comparison itself runs to completion.
func (m *Manager) compare(ctx context.Context, hash []byte, password string) (bool, error) {
	done := make(chan compareResult, 1)
	go func() {
		ok, err := m.hasher.Compare(hash, []byte(password))
		done <- compareResult{ok: ok, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-done:
		return r.ok, r.err
	}
}

func (m *Manager) compareDummy(ctx context.Context, password string) error {
	done := make(chan struct{})
	go func() {
		m.hasher.CompareDummy([]byte(password))
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
