// Package sessions implements the credential and session manager: credential
// verification, session issue, validation with lazy expiry, logout, bulk
// revocation and the periodic sweep of expired sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/server/models"
)

// Store persists sessions. Every method is atomic with respect to concurrent
// callers; in particular Refresh and SweepExpired serialise per session, so a removed session is never revived and a session refreshed
// at time T is never swept with a clock reading at or before T.
type Store interface {
	// Create stores a new session. Tokens are unique.
	Create(ctx context.Context, s *models.Session) error

	// Get returns a copy of the session or common.ErrorNotFound. It does not
	// check expiry.
	Get(ctx context.Context, token string) (*models.Session, error)

	// Refresh is the single remove-if-expired-else-touch primitive. When the
	// session is absent it returns common.ErrorNotFound; when now >= ExpiresAt
	// it removes the session and returns common.ErrSessionExpired; otherwise
	// it sets LastSeenAt = now and, if extendTo is after the current expiry,
	// ExpiresAt = extendTo, and returns the updated copy.
	Refresh(ctx context.Context, token string, now, extendTo time.Time) (*models.Session, error)

	// Delete removes the session. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes every session owned by userID and returns how many.
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// SweepExpired removes every session with ExpiresAt <= now and returns
	// how many.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	Close() error
}

// UserDirectory is the user lookup the manager depends on. Both methods
// return common.ErrorNotFound for unknown users.
type UserDirectory interface {
	// FindUser looks a user up by login, case-sensitively.
	FindUser(ctx context.Context, identifier string) (*models.User, error)
	// GetUser looks a user up by ID.
	GetUser(ctx context.Context, userID string) (*models.User, error)
}
