package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestGenerateAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("test-secret", "550e8400-e29b-41d4-a716-446655440000")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateAccessToken("test-secret", token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("unexpected user %q", claims.UserID)
	}
	if claims.TokenType != tokenTypeAccess {
		t.Errorf("expected access token, got %q", claims.TokenType)
	}
	if delta := time.Until(claims.ExpiresAt.Time) - AccessTokenDuration; delta.Abs() > 2*time.Second {
		t.Errorf("expiry off by %v", delta)
	}
}

func TestValidateAccessTokenRejects(t *testing.T) {
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	expired := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "garbage",
			token: "not-a-valid-jwt",
		},
		{
			name:  "wrong secret",
			token: sign(t, jwt.SigningMethodHS256, []byte("other-secret"), Claims{UserID: "u1", TokenType: "access", RegisteredClaims: valid}),
		},
		{
			name:  "expired",
			token: sign(t, jwt.SigningMethodHS256, []byte("test-secret"), Claims{UserID: "u1", TokenType: "access", RegisteredClaims: expired}),
		},
		{
			name:  "no expiry",
			token: sign(t, jwt.SigningMethodHS256, []byte("test-secret"), Claims{UserID: "u1", TokenType: "access"}),
		},
		{
			name:  "other hmac algorithm",
			token: sign(t, jwt.SigningMethodHS512, []byte("test-secret"), Claims{UserID: "u1", TokenType: "access", RegisteredClaims: valid}),
		},
		{
			name:  "unsigned",
			token: sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, Claims{UserID: "u1", TokenType: "access", RegisteredClaims: valid}),
		},
		{
			name:  "refresh token",
			token: sign(t, jwt.SigningMethodHS256, []byte("test-secret"), Claims{UserID: "u1", TokenType: "refresh", RegisteredClaims: valid}),
			want:  ErrWrongTokenType,
		},
		{
			name:  "no user",
			token: sign(t, jwt.SigningMethodHS256, []byte("test-secret"), Claims{TokenType: "access", RegisteredClaims: valid}),
			want:  ErrNoSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateAccessToken("test-secret", tt.token)
			if err == nil {
				t.Fatalf("expected error, got claims %+v", claims)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAccessTokenAllowsClockSkew(t *testing.T) {
	claims := Claims{
		UserID:    "u1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
		},
	}
	token := sign(t, jwt.SigningMethodHS256, []byte("test-secret"), claims)

	if _, err := ValidateAccessToken("test-secret", token); err != nil {
		t.Errorf("expected token within skew to validate, got %v", err)
	}
}
