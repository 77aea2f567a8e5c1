// Package auth holds the credential primitives: the session token codec,
// the password hasher, and the passcode generator. Everything here is
// stateless; identity lives entirely inside the signed token.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCookie is the agreed transport location for the session token.
const TokenCookie = "token"

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, malformed payload, expired, or missing the user id claim.
var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the single custom claim (the user id) next to the
// registered set.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// GenerateToken signs a session token for the given user. Any process
// holding the same secret can verify it, so instances share no session
// state.
func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		UserID: userID,
	})
	return token.SignedString(secret)
}

// UserIDFromToken verifies the token and extracts the user id claim.
// The signing method is pinned to HMAC so a token cannot downgrade
// verification to "none" or swap in an asymmetric scheme.
func UserIDFromToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
