package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errEmptyToken = errors.New("token is empty")

// ParseUnverified decodes JWT claims without checking the signature. The
// client never holds the signing key; the server remains the authority.
func ParseUnverified(tokenString string) (*AccessTokenClaims, error) {
	trimmed := strings.TrimSpace(tokenString)
	if trimmed == "" {
		return nil, errEmptyToken
	}
	claims := &AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(trimmed, claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim at or before now.
// Opaque or exp-less tokens are never considered expired locally.
func Expired(tokenString string, now time.Time) bool {
	claims, err := ParseUnverified(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now)
}
