package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// secretPrefix is the prefix used for generated webhook secrets.
const secretPrefix = "whsec_"

// GenerateSecret creates a new random webhook signing secret.
func GenerateSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return secretPrefix + hex.EncodeToString(secret), nil
}

// MatchSecret compares a presented shared secret in constant time.
func MatchSecret(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
