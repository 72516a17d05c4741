package models

import "time"

// Session is a time-bounded proof of a prior successful login, identified by
// an opaque random token. UserID is a lookup reference only.
type Session struct {
	Token      string
	UserID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// ExpiredAt reports whether the session is no longer valid at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
