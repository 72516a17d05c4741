package audit

import (
	"context"

	"github.com/dmitrijs2005/salesdash/internal/logging"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{logger: l.With("module", "audit")}
}

func (s *LogSink) Emit(ctx context.Context, e Event) {
	args := []any{
		"event", string(e.Type),
		"at", e.At,
		"transport", e.Origin.Transport,
		"remote_addr", e.Origin.RemoteAddr,
	}
	if e.UserID != "" {
		args = append(args, "user_id", e.UserID)
	}
	if e.Identifier != "" {
		args = append(args, "identifier", e.Identifier)
	}
	if e.Reason != "" {
		args = append(args, "reason", e.Reason)
	}
	if e.Count != 0 {
		args = append(args, "count", e.Count)
	}

	switch e.Type {
	case EventLoginFailed, EventLoginThrottled:
		s.logger.Warn(ctx, "audit", args...)
	default:
		s.logger.Info(ctx, "audit", args...)
	}
}
