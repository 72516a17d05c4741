package sessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(token, userID string, ttl time.Duration) *models.Session {
	return &models.Session{
		Token:      token,
		UserID:     userID,
		CreatedAt:  t0,
		ExpiresAt:  t0.Add(ttl),
		LastSeenAt: t0,
	}
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.Create(ctx, newSession("tok", "u1", time.Minute)))
	assert.ErrorIs(t, m.Create(ctx, newSession("tok", "u2", time.Minute)), common.ErrorAlreadyExists)

	s, err := m.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	s.UserID = "mutated"
	again, err := m.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID, "Get returns a copy")

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryStore_Refresh(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		now        time.Time
		extendTo   time.Time
		wantErr    error
		wantExpiry time.Time
	}{
		{name: "touch without extension", now: t0.Add(10 * time.Second), wantExpiry: t0.Add(time.Minute)},
		{name: "extension", now: t0.Add(10 * time.Second), extendTo: t0.Add(70 * time.Second), wantExpiry: t0.Add(70 * time.Second)},
		{name: "never shortens", now: t0.Add(10 * time.Second), extendTo: t0.Add(20 * time.Second), wantExpiry: t0.Add(time.Minute)},
		{name: "expired at boundary", now: t0.Add(time.Minute), wantErr: common.ErrSessionExpired},
		{name: "expired", now: t0.Add(2 * time.Minute), extendTo: t0.Add(time.Hour), wantErr: common.ErrSessionExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryStore()
			require.NoError(t, m.Create(ctx, newSession("tok", "u1", time.Minute)))

			s, err := m.Refresh(ctx, "tok", tt.now, tt.extendTo)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, m.Len(), "expired session is removed")
				_, err = m.Refresh(ctx, "tok", tt.now, tt.extendTo)
				assert.ErrorIs(t, err, common.ErrorNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.now, s.LastSeenAt)
			assert.Equal(t, tt.wantExpiry, s.ExpiresAt)
		})
	}
}

func TestMemoryStore_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for _, user := range []string{"u1", "u2", "u3"} {
		for i := 0; i < 2; i++ {
			require.NoError(t, m.Create(ctx, newSession(fmt.Sprintf("%s-%d", user, i), user, time.Minute)))
		}
	}

	n, err := m.DeleteByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, m.Len())

	for _, token := range []string{"u1-0", "u1-1", "u3-0", "u3-1"} {
		_, err := m.Get(ctx, token)
		assert.NoError(t, err, token)
	}

	n, err = m.DeleteByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.Create(ctx, newSession("short", "u1", time.Second)))
	require.NoError(t, m.Create(ctx, newSession("exact", "u1", 5*time.Second)))
	require.NoError(t, m.Create(ctx, newSession("long", "u2", time.Hour)))

	n, err := m.SweepExpired(ctx, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Len())

	n, err = m.SweepExpired(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = m.Refresh(ctx, "long", t0.Add(time.Hour), time.Time{})
	assert.ErrorIs(t, err, common.ErrSessionExpired, "lazy removal on access")
	assert.Zero(t, m.Len())
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Create(ctx, newSession("tok", "u1", time.Minute)))

	assert.NoError(t, m.Delete(ctx, "tok"))
	assert.NoError(t, m.Delete(ctx, "tok"))
	assert.NoError(t, m.Delete(ctx, "never-existed"))
	assert.Equal(t, 0, m.Len())
}

// A session refreshed before a sweep whose clock reading precedes the
// refresh survives; one removed by a sweep is never revived by a refresh.
func TestMemoryStore_RefreshSweepRace(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 200; round++ {
		m := NewMemoryStore()
		require.NoError(t, m.Create(ctx, newSession("tok", "u1", time.Second)))

		var wg sync.WaitGroup
		var refreshErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, refreshErr = m.Refresh(ctx, "tok", t0.Add(999*time.Millisecond), t0.Add(time.Hour))
		}()
		go func() {
			defer wg.Done()
			_, _ = m.SweepExpired(ctx, t0.Add(time.Second))
		}()
		wg.Wait()

		if refreshErr == nil {
			// Refresh won and extended the session past the sweep's reading.
			assert.Equal(t, 1, m.Len(), "round %d", round)
		} else {
			assert.ErrorIs(t, refreshErr, common.ErrorNotFound, "round %d", round)
			assert.Equal(t, 0, m.Len(), "round %d", round)
		}
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			user := fmt.Sprintf("u%d", i%5)
			assert.NoError(t, m.Create(ctx, newSession(token, user, time.Minute)))
			_, _ = m.Refresh(ctx, token, t0.Add(time.Second), t0.Add(2*time.Minute))
			_, _ = m.SweepExpired(ctx, t0.Add(30*time.Second))
			if i%2 == 0 {
				_ = m.Delete(ctx, token)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, m.Len())
}
