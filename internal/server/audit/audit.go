// Package audit records security-relevant events of the session lifecycle.
// Events never carry session tokens or passwords.
package audit

import (
	"context"
	"time"
)

// EventType names what happened.
type EventType string

const (
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
	EventLoginThrottled     EventType = "login_throttled"
	EventSessionExpired     EventType = "session_expired"
	EventSessionRevoked     EventType = "session_revoked"
	EventSessionsRevokedAll EventType = "sessions_revoked_all"
	EventSessionsSwept      EventType = "sessions_swept"
	EventUserDeactivated    EventType = "user_deactivated"
	EventPasswordChanged    EventType = "password_changed"
)

// Origin describes where a request came from.
type Origin struct {
	Transport  string `json:"transport,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// Event is one audit record.
type Event struct {
	Type       EventType `json:"type"`
	At         time.Time `json:"at"`
	UserID     string    `json:"user_id,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Count      int       `json:"count,omitempty"`
	Origin     Origin    `json:"origin"`
}

// Sink accepts audit events. Emit must not block the caller for long and must
// not fail the operation being audited; implementations log their own errors.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

type originKey struct{}

// WithOrigin attaches o to ctx.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom returns the origin stored in ctx, if any.
func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// Discard drops all events.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}
