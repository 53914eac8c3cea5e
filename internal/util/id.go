package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string. Entity ids use it as-is.
func NewID() string {
	return uuid.NewString()
}

// NewToken returns an opaque random token, optionally prefixed ("rft_...").
func NewToken(prefix string) string {
	bytes := make([]byte, 24)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// IsID reports whether value parses as a UUID.
func IsID(value string) bool {
	_, err := uuid.Parse(strings.TrimSpace(value))
	return err == nil
}
