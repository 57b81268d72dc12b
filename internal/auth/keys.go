package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/coursetrack/coursetrack/internal/database"
)

// KeyPrefix marks long-lived personal keys used by scripts and the watch CLI.
const KeyPrefix = "ct_"

var ErrUnknownKey = errors.New("unknown or revoked key")

func IsKey(token string) bool {
	return strings.HasPrefix(token, KeyPrefix)
}

func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyStore resolves personal keys stored as SHA-256 hashes in api_keys.
type KeyStore struct {
	db database.DBTX
}

func NewKeyStore(db database.DBTX) *KeyStore {
	return &KeyStore{db: db}
}

// Resolve returns the owner of a live key and stamps its last use in the
// same statement. Revoked keys resolve to ErrUnknownKey.
func (s *KeyStore) Resolve(ctx context.Context, key string) (string, error) {
	if !IsKey(key) {
		return "", ErrUnknownKey
	}

	var userID string
	err := s.db.QueryRow(ctx,
		`UPDATE api_keys SET last_used_at = now()
		 WHERE key_hash = $1 AND revoked_at IS NULL
		 RETURNING user_id`,
		HashKey(key),
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownKey
	}
	if err != nil {
		return "", fmt.Errorf("resolve key: %w", err)
	}
	return userID, nil
}
