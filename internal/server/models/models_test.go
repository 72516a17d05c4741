package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_Name(t *testing.T) {
	assert.Equal(t, "Alice Smith", (&User{UserName: "alice", DisplayName: "Alice Smith"}).Name())
	assert.Equal(t, "alice", (&User{UserName: "alice"}).Name())
}

func TestSession_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	assert.False(t, s.ExpiredAt(now))
	assert.False(t, s.ExpiredAt(now.Add(59*time.Second)))
	assert.True(t, s.ExpiredAt(now.Add(time.Minute)), "expiry instant itself is expired")
	assert.True(t, s.ExpiredAt(now.Add(time.Hour)))
}
