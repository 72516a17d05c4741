// Package common contains shared constants and sentinel errors used across
// salesdash components.
package common

// SessionCookieName is the HTTP cookie that carries the sealed session token.
const SessionCookieName = "salesdash_session"

// SessionTokenHeaderName is the gRPC metadata key used to carry the sealed
// session token on inbound calls.
const SessionTokenHeaderName = "session_token"

// SessionTokenBytes is the number of random bytes in a session token. The
// hex-encoded token is twice as long.
const SessionTokenBytes = 32

// RequestIDHeaderName carries a caller-supplied request id on HTTP requests
// and gRPC metadata. One is generated when absent.
const RequestIDHeaderName = "x-request-id"

// MaxRequestIDLength bounds accepted request ids; longer values are replaced.
const MaxRequestIDLength = 64
