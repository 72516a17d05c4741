// Package common defines shared constants and sentinel errors used across
// the server layers of salesdash. Callers should use errors.Is to match these
// values and errors.As for *StoreError.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrInvalidInput = errors.New("invalid input")

	// Credential verification. Both failures collapse to ErrInvalidCredentials
	// at any outward boundary.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownUser        = fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	ErrBadPassword        = fmt.Errorf("%w: bad password", ErrInvalidCredentials)
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrWeakPassword       = fmt.Errorf("%w: password too short", ErrInvalidInput)

	// Session lifecycle. All of them collapse to ErrSessionInvalid.
	ErrSessionInvalid  = errors.New("session invalid, please log in again")
	ErrSessionNotFound = fmt.Errorf("%w: not found", ErrSessionInvalid)
	ErrSessionExpired  = fmt.Errorf("%w: expired", ErrSessionInvalid)
	ErrUserDeactivated = fmt.Errorf("%w: user deactivated", ErrSessionInvalid)
	ErrMalformedToken  = fmt.Errorf("%w: malformed token", ErrSessionInvalid)
)

// StoreError reports a failure of the backing user or session store. It is
// surfaced to callers as an internal error and never shown to end users.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a *StoreError unless err is nil or one of the
// repository sentinels that callers branch on.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrorNotFound) || errors.Is(err, ErrorAlreadyExists) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err carries a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
