package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/logging"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically removes expired sessions so that sessions which are
// never accessed again do not accumulate.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   logging.Logger
}

func NewSweeper(m *Manager, interval time.Duration, l logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if l == nil {
		l = logging.Nop()
	}
	return &Sweeper{manager: m, interval: interval, logger: l.With("module", "sweeper")}
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "session sweeper stopped")
			return nil
		case <-ticker.C:
			n, err := s.manager.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug(ctx, "expired sessions swept", "count", n)
			}
		}
	}
}
