package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type TokenType string

const (
	TokenTypeUndefined TokenType = ""
	TokenTypeUser      TokenType = "user"
	TokenTypeAdmin     TokenType = "admin"
)

// TokenSecretKey signs and verifies tokens. cmd overrides it from the loaded config.
var TokenSecretKey = os.Getenv("TOKEN_AUTH_SECRET")

// TokenClaims carries the caller identity. Subject holds the user id; admin tokens grant the
// system administrator capability on every session.
type TokenClaims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

func (c *TokenClaims) UserID() string {
	return c.Subject
}

func (c *TokenClaims) IsAdmin() bool {
	return c.Type == TokenTypeAdmin
}

func GenerateToken(userID string, tokenType TokenType, dur time.Duration) (string, error) {
	if TokenSecretKey == "" {
		return "", ErrEmptySecret
	}
	if userID == "" {
		return "", ErrMissingSubject
	}

	now := time.Now()
	claims := TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(dur)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TokenSecretKey))
}

func VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			alg, _ := token.Header["alg"].(string)
			return nil, errors.Wrap(ErrInvalidSigningMethod, alg)
		}
		return []byte(TokenSecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

func IsValidToken(tokenString string) (*TokenClaims, bool) {
	claims, err := VerifyToken(tokenString)
	if err != nil {
		return nil, false
	}
	return claims, true
}
