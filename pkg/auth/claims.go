package auth

import (
	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the subset of the server-issued JWT the client reads.
type AccessTokenClaims struct {
	UserID   string         `json:"user_id,omitempty"`
	UserType enums.UserType `json:"user_type,omitempty"`
	jwt.RegisteredClaims
}
