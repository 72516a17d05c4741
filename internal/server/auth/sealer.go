// Package auth holds the boundary helpers of the credential and session
// manager: token sealing for cookies and bearer headers, and the
// failed-attempt limiter.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the opaque session token inside an HS256 JWT. There is no
// expiry claim: the session store is the only authority on validity.
type Claims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"sid"`
}

// TokenSealer signs opaque session tokens before they leave the server, so a
// tampered cookie is rejected without touching the session store.
type TokenSealer struct {
	key []byte
}

func NewTokenSealer(secretKey string) *TokenSealer {
	return &TokenSealer{key: []byte(secretKey)}
}

// Seal returns the signed form of token.
func (s *TokenSealer) Seal(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty session token")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		SessionToken: token,
	})
	return t.SignedString(s.key)
}

// Open verifies sealed and returns the opaque token inside. Any failure is
// reported as common.ErrMalformedToken.
func (s *TokenSealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", common.ErrSessionNotFound
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(sealed, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.SessionToken == "" {
		return "", common.ErrMalformedToken
	}

	return claims.SessionToken, nil
}
