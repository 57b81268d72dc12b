package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenDuration = 15 * time.Minute
	clockSkew           = 30 * time.Second
	tokenTypeAccess     = "access"
)

var (
	ErrWrongTokenType = errors.New("not an access token")
	ErrNoSubject      = errors.New("token has no user")
)

// Claims mirrors the access tokens issued by the account service.
type Claims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithExpirationRequired(),
	jwt.WithLeeway(clockSkew),
)

// GenerateAccessToken signs a short-lived access token. The tracker never
// issues tokens to browsers; this exists for the dev CLI and tests.
func GenerateAccessToken(secret, userID string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
		},
	}).SignedString([]byte(secret))
}

// ValidateAccessToken checks signature, expiry and token type and returns
// the claims of a usable access token.
func ValidateAccessToken(secret, raw string) (*Claims, error) {
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" {
		return nil, ErrNoSubject
	}
	return &claims, nil
}
