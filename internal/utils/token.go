package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// SessionTokenPrefix marks session tokens so secret scanners can spot leaks
	SessionTokenPrefix = "sv_"

	// SessionTokenRandomBytes is the entropy of a session token (256 bits)
	SessionTokenRandomBytes = 32
)

// GenerateSessionToken returns a new random session token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, SessionTokenRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return SessionTokenPrefix + hex.EncodeToString(b), nil
}

// HashToken creates a SHA-256 hash of the token for storage.
// Only the hash is persisted; the raw token is returned to the client once.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// MaskToken masks a token for safe logging
// Example: "abc123xyz789" -> "abc***789"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 6 {
		return "***"
	}
	return token[:3] + "***" + token[len(token)-3:]
}
