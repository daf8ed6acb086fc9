package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"cultivar/pkg/domainerrors"
)

// Claims are the access-token claims the companion backend issues.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenValidator checks locally-cached access tokens at hydration time so the
// app never boots into a half-authenticated UI on an expired session.
type TokenValidator struct {
	signingKey []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate parses and verifies a token, returning its claims.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.New(domainerrors.CodeUnauthorized, "token has expired")
		}
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
