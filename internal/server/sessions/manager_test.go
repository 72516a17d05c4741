package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
	// afterFind runs once FindUser has taken its copy, outside the lock.
	afterFind func()
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]*models.User)}
}

func (d *fakeDirectory) add(t *testing.T, h *cryptox.Hasher, id, login, password string) *models.User {
	t.Helper()
	hash, err := h.Hash([]byte(password))
	require.NoError(t, err)

	u := &models.User{ID: id, UserName: login, PasswordHash: hash, Active: true}
	d.mu.Lock()
	d.users[id] = u
	d.mu.Unlock()
	return u
}

func (d *fakeDirectory) setActive(id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id].Active = active
}

func (d *fakeDirectory) setHash(id string, hash []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id].PasswordHash = hash
}

func (d *fakeDirectory) FindUser(_ context.Context, identifier string) (*models.User, error) {
	u, hook, err := d.find(identifier)
	if hook != nil {
		hook()
	}
	return u, err
}

func (d *fakeDirectory) find(identifier string) (*models.User, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.afterFind, d.err
	}
	for _, u := range d.users {
		if u.UserName == identifier {
			c := *u
			return &c, d.afterFind, nil
		}
	}
	return nil, d.afterFind, common.ErrorNotFound
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingSink) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	manager *Manager
	store   *MemoryStore
	users   *fakeDirectory
	hasher  *cryptox.Hasher
	clock   *fakeClock
	sink    *recordingSink
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	h, err := cryptox.NewHasher(4)
	require.NoError(t, err)

	f := &fixture{
		store:  NewMemoryStore(),
		users:  newFakeDirectory(),
		hasher: h,
		clock:  &fakeClock{t: t0},
		sink:   &recordingSink{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithLifetime(30 * time.Minute),
		WithAudit(f.sink),
	}
	f.manager = NewManager(f.store, f.users, h, append(base, opts...)...)
	return f
}

func TestManager_LoginValidateExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithLifetime(2*time.Second))
	f.users.add(t, f.hasher, "u-alice", "alice", "hunter2")

	s, err := f.manager.VerifyCredentials(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Len(t, s.Token, 2*common.SessionTokenBytes)
	assert.Equal(t, "u-alice", s.UserID)
	assert.Equal(t, t0.Add(2*time.Second), s.ExpiresAt)

	u, err := f.manager.ValidateSession(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)

	f.clock.Advance(3 * time.Second)

	_, err = f.manager.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.ErrorIs(t, err, common.ErrSessionInvalid)
	assert.Equal(t, 0, f.store.Len(), "expired session is removed on access")

	_, err = f.manager.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestManager_CredentialFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.add(t, f.hasher, "u-alice", "alice", "hunter2")

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{name: "unknown user", identifier: "mallory", password: "hunter2", wantErr: common.ErrUnknownUser},
		{name: "bad password", identifier: "alice", password: "hunter3", wantErr: common.ErrBadPassword},
		{name: "case sensitive login", identifier: "Alice", password: "hunter2", wantErr: common.ErrUnknownUser},
		{name: "empty password", identifier: "alice", password: "", wantErr: common.ErrInvalidInput},
		{name: "empty identifier", identifier: "", password: "hunter2", wantErr: common.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.manager.VerifyCredentials(ctx, tt.identifier, tt.password)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 0, f.store.Len())
}

func TestManager_FailuresShareOneOutwardError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.add(t, f.hasher, "u-alice", "alice", "hunter2")

	_, unknown := f.manager.VerifyCredentials(ctx, "nobody", "hunter2")
	_, bad := f.manager.VerifyCredentials(ctx, "alice", "wrong")

	assert.ErrorIs(t, unknown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, bad, common.ErrInvalidCredentials)
	assert.False(t, errors.Is(unknown, common.ErrBadPassword))
	assert.False(t, errors.Is(bad, common.ErrUnknownUser))
}

func TestManager_DeactivatedUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.add(t, f.hasher, "u-bob", "bob", "correct horse")

	s, err := f.manager.VerifyCredentials(ctx, "bob", "correct horse")
	require.NoError(t, err)

	f.users.setActive("u-bob", false)

	_, err = f.manager.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrUserDeactivated)
	assert.Equal(t, 0, f.store.Len())

	_, err = f.manager.VerifyCredentials(ctx, "bob", "correct horse")
	assert.ErrorIs(t, err, common.ErrUnknownUser)
}

func TestManager_SlidingExpiration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		sliding bool
		valid   bool
	}{
		{name: "sliding keeps an active session alive", sliding: true, valid: true},
		{name: "fixed expiry ends at lifetime", sliding: false, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithLifetime(10*time.Second), WithSlidingExpiration(tt.sliding))
			f.users.add(t, f.hasher, "u1", "carol", "password1")

			s, err := f.manager.VerifyCredentials(ctx, "carol", "password1")
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				f.clock.Advance(4 * time.Second)
				_, _ = f.manager.ValidateSession(ctx, s.Token)
			}

			stored, err := f.store.Get(ctx, s.Token)
			if !tt.valid {
				assert.ErrorIs(t, err, common.ErrorNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, t0.Add(22*time.Second), stored.ExpiresAt)
			assert.Equal(t, t0.Add(12*time.Second), stored.LastSeenAt)
		})
	}
}

func TestManager_InvalidateSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.add(t, f.hasher, "u1", "dave", "password1")

	s, err := f.manager.VerifyCredentials(ctx, "dave", "password1")
	require.NoError(t, err)

	require.NoError(t, f.manager.InvalidateSession(ctx, s.Token))
	require.NoError(t, f.manager.InvalidateSession(ctx, s.Token))
	require.NoError(t, f.manager.InvalidateSession(ctx, ""))

	_, err = f.manager.ValidateSession(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestManager_InvalidateAllSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tokens := map[string][]string{}
	for _, name := range []string{"erin", "frank", "grace"} {
		f.users.add(t, f.hasher, "u-"+name, name, "password-"+name)
		for i := 0; i < 2; i++ {
			s, err := f.manager.VerifyCredentials(ctx, name, "password-"+name)
			require.NoError(t, err)
			tokens[name] = append(tokens[name], s.Token)
		}
	}

	n, err := f.manager.InvalidateAllSessions(ctx, "u-frank")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for name, list := range tokens {
		for _, token := range list {
			_, err := f.manager.ValidateSession(ctx, token)
			if name == "frank" {
				assert.ErrorIs(t, err, common.ErrSessionInvalid, name)
			} else {
				assert.NoError(t, err, name)
			}
		}
	}
}

func TestManager_ConcurrentLoginsGetDistinctTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.add(t, f.hasher, "u1", "heidi", "password1")

	const n = 20
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.manager.VerifyCredentials(ctx, "heidi", "password1")
			if assert.NoError(t, err) {
				results <- s.Token
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]struct{}{}
	for token := range results {
		seen[token] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, f.store.Len())
}

func TestManager_SweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithLifetime(time.Minute))
	f.users.add(t, f.hasher, "u1", "ivan", "password1")

	for i := 0; i < 3; i++ {
		_, err := f.manager.VerifyCredentials(ctx, "ivan", "password1")
		require.NoError(t, err)
	}

	n, err := f.manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(time.Minute)
	n, err = f.manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, f.sink.types(), audit.EventSessionsSwept)
}

func TestManager_Throttling(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: t0}
	limiter := auth.NewAttemptLimiter(3, time.Minute, clock.Now)
	f := newFixture(t, WithLimiter(limiter), WithClock(clock.Now))
	f.users.add(t, f.hasher, "u1", "judy", "password1")

	for i := 0; i < 3; i++ {
		_, err := f.manager.VerifyCredentials(ctx, "judy", "nope")
		assert.ErrorIs(t, err, common.ErrBadPassword)
	}

	_, err := f.manager.VerifyCredentials(ctx, "judy", "password1")
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	clock.Advance(2 * time.Minute)
	_, err = f.manager.VerifyCredentials(ctx, "judy", "password1")
	assert.NoError(t, err)
	assert.Contains(t, f.sink.types(), audit.EventLoginThrottled)
}

func TestManager_DirectoryFailureIsNotACredentialError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.err = fmt.Errorf("connection reset")

	_, err := f.manager.VerifyCredentials(ctx, "alice", "hunter2")
	require.Error(t, err)
	assert.True(t, common.IsStoreError(err))
	assert.False(t, errors.Is(err, common.ErrInvalidCredentials))

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, audit.EventLoginFailed, f.sink.events[0].Type)
	assert.Equal(t, "store_error", f.sink.events[0].Reason)
}

func TestManager_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.users.add(t, f.hasher, "u1", "kim", "password1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.VerifyCredentials(ctx, "kim", "password1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.store.Len())
}

func TestManager_AuditTrail(t *testing.T) {
	ctx := audit.WithOrigin(context.Background(), audit.Origin{Transport: "http", RemoteAddr: "10.0.0.1"})
	f := newFixture(t)
	f.users.add(t, f.hasher, "u1", "leo", "password1")

	_, _ = f.manager.VerifyCredentials(ctx, "leo", "wrong")
	s, err := f.manager.VerifyCredentials(ctx, "leo", "password1")
	require.NoError(t, err)
	require.NoError(t, f.manager.InvalidateSession(ctx, s.Token))

	assert.Equal(t, []audit.EventType{
		audit.EventLoginFailed,
		audit.EventLoginSucceeded,
		audit.EventSessionRevoked,
	}, f.sink.types())

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	for _, e := range f.sink.events {
		assert.Equal(t, "http", e.Origin.Transport)
		assert.Equal(t, t0, e.At)
	}
}

func TestManager_CredentialChangeDuringLogin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		change  func(t *testing.T, f *fixture)
		wantErr error
	}{
		{
			name: "password rotated",
			change: func(t *testing.T, f *fixture) {
				hash, err := f.hasher.Hash([]byte("rotated-password"))
				require.NoError(t, err)
				f.users.setHash("u1", hash)
			},
			wantErr: common.ErrBadPassword,
		},
		{
			name:    "user deactivated",
			change:  func(_ *testing.T, f *fixture) { f.users.setActive("u1", false) },
			wantErr: common.ErrUnknownUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.users.add(t, f.hasher, "u1", "nina", "password1")

			// The old hash has been read; the change and its revocation land
			// before the new session is stored.
			revoked := -1
			f.users.afterFind = func() {
				tt.change(t, f)
				n, err := f.manager.InvalidateAllSessions(ctx, "u1")
				require.NoError(t, err)
				revoked = n
			}

			s, err := f.manager.VerifyCredentials(ctx, "nina", "password1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, s)
			assert.Zero(t, revoked)
			assert.Zero(t, f.store.Len(), "no session survives the change")
			assert.NotContains(t, f.sink.types(), audit.EventLoginSucceeded)
		})
	}
}

func TestManager_ConcurrentGuessesRespectLimit(t *testing.T) {
	ctx := context.Background()
	limiter := auth.NewAttemptLimiter(3, time.Hour, nil)
	f := newFixture(t, WithLimiter(limiter))
	f.users.add(t, f.hasher, "u1", "olga", "password1")

	const attempts = 30
	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		bad, throttled int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.manager.VerifyCredentials(ctx, "olga", "wrong")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, common.ErrBadPassword):
				bad++
			case errors.Is(err, common.ErrTooManyAttempts):
				throttled++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, bad, "password guesses evaluated")
	assert.Equal(t, attempts-3, throttled)

	_, err := f.manager.VerifyCredentials(ctx, "olga", "password1")
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)
}

// Unknown users must cost the same as a wrong password, within 10%. The two
// paths are interleaved so that drift in machine load hits both, and medians
// keep scheduler noise out of the comparison.
func TestManager_UnknownUserTiming(t *testing.T) {
	if testing.Short() {
		t.Skip("timing comparison")
	}
	ctx := context.Background()

	h, err := cryptox.NewHasher(10)
	require.NoError(t, err)
	users := newFakeDirectory()
	users.add(t, h, "u1", "mike", "password1")
	m := NewManager(NewMemoryStore(), users, h)

	run := func(identifier string) time.Duration {
		start := time.Now()
		_, err := m.VerifyCredentials(ctx, identifier, "wrong-password")
		elapsed := time.Since(start)
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
		return elapsed
	}
	median := func(samples []time.Duration) time.Duration {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		return samples[len(samples)/2]
	}

	// warm up
	run("mike")
	run("nobody")

	const runs = 15
	known := make([]time.Duration, 0, runs)
	unknown := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		if i%2 == 0 {
			known = append(known, run("mike"))
			unknown = append(unknown, run("nobody"))
		} else {
			unknown = append(unknown, run("nobody"))
			known = append(known, run("mike"))
		}
	}

	k, u := median(known), median(unknown)
	ratio := float64(u) / float64(k)
	assert.InDelta(t, 1.0, ratio, 0.10, "unknown=%s known=%s", u, k)
}
