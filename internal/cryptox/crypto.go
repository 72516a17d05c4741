// Package cryptox implements password hashing for dashboard accounts on top
// of bcrypt, including the dummy comparison used when a login names an
// unknown user.
package cryptox

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest password bcrypt accepts.
const MaxPasswordLength = 72

// Hasher hashes and verifies passwords with a fixed bcrypt cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// ClampCost keeps cost inside the range bcrypt accepts.
func ClampCost(cost int) int {
	switch {
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}

// NewHasher builds a Hasher and precomputes a dummy hash of a random secret at
// the same cost, so that comparisons against it take as long as comparisons
// against a real user's hash.
func NewHasher(cost int) (*Hasher, error) {
	cost = ClampCost(cost)

	secret := common.GenerateRandByteArray(32)
	defer common.WipeByteArray(secret)

	dummy, err := bcrypt.GenerateFromPassword(secret, cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Cost returns the bcrypt cost factor in use.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of password.
func (h *Hasher) Hash(password []byte) ([]byte, error) {
	if len(password) > MaxPasswordLength {
		return nil, bcrypt.ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword(password, h.cost)
}

// Compare reports whether password matches hash. A mismatch is not an error;
// a malformed hash is.
func (h *Hasher) Compare(hash, password []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("compare hash: %w", err)
	}
}

// CompareDummy burns the same work as Compare against a hash that no
// password matches. It always returns false.
func (h *Hasher) CompareDummy(password []byte) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, password)
	return false
}
