package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSweeper_RemovesExpiredAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	f := newFixture(t, WithLifetime(time.Second))
	f.users.add(t, f.hasher, "u1", "nina", "password1")

	for i := 0; i < 2; i++ {
		_, err := f.manager.VerifyCredentials(ctx, "nina", "password1")
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Second)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(f.manager, 10*time.Millisecond, nil).Run(runCtx)
	}()

	assert.Eventually(t, func() bool { return f.store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(nil, 0, nil)
	assert.Equal(t, DefaultSweepInterval, s.interval)
}
