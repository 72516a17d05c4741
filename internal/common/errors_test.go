package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialErrorsCollapse(t *testing.T) {
	for _, err := range []error{ErrUnknownUser, ErrBadPassword} {
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.NotErrorIs(t, err, ErrSessionInvalid)
	}
	assert.NotErrorIs(t, ErrUnknownUser, ErrBadPassword)
}

func TestSessionErrorsCollapse(t *testing.T) {
	for _, err := range []error{ErrSessionNotFound, ErrSessionExpired, ErrUserDeactivated, ErrMalformedToken} {
		assert.ErrorIs(t, err, ErrSessionInvalid)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestNewStoreError(t *testing.T) {
	assert.NoError(t, NewStoreError("get", nil))

	assert.Same(t, ErrorNotFound, NewStoreError("get", ErrorNotFound))

	wrappedNotFound := fmt.Errorf("lookup: %w", ErrorNotFound)
	assert.Equal(t, wrappedNotFound, NewStoreError("get", wrappedNotFound))

	cause := errors.New("connection refused")
	err := NewStoreError("refresh", cause)
	assert.True(t, IsStoreError(err))
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "store refresh: connection refused")

	// already wrapped errors are not wrapped twice
	again := NewStoreError("outer", err)
	assert.Equal(t, err, again)
}

func TestIsStoreError(t *testing.T) {
	assert.False(t, IsStoreError(nil))
	assert.False(t, IsStoreError(ErrBadPassword))
	assert.True(t, IsStoreError(fmt.Errorf("ctx: %w", &StoreError{Op: "x", Err: errors.New("y")})))
}
