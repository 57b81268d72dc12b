// Package auth authenticates API requests. Tokens are issued by the account
// service; this package only validates them.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coursetrack/coursetrack/internal/database"
	"github.com/coursetrack/coursetrack/internal/httputil"
)

type contextKey struct{}

type Handler struct {
	keys      *KeyStore
	jwtSecret string
}

func NewHandler(db database.DBTX, jwtSecret string) *Handler {
	return &Handler{keys: NewKeyStore(db), jwtSecret: jwtSecret}
}

// Middleware accepts a JWT access token or a personal key as the bearer
// credential and stores the owning user id in the request context.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		userID, msg := h.authenticate(r.Context(), token)
		if msg != "" {
			httputil.WriteError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

// authenticate returns the user id, or the message to send with a 401.
func (h *Handler) authenticate(ctx context.Context, token string) (string, string) {
	if IsKey(token) {
		userID, err := h.keys.Resolve(ctx, token)
		if err != nil {
			if !errors.Is(err, ErrUnknownKey) {
				slog.Error("auth: key lookup failed", "error", err)
			}
			return "", "invalid API key"
		}
		return userID, ""
	}

	claims, err := ValidateAccessToken(h.jwtSecret, token)
	switch {
	case errors.Is(err, ErrWrongTokenType):
		return "", "invalid token type"
	case err != nil:
		return "", "invalid token"
	}
	return claims.UserID, ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey{}).(string)
	return userID
}
