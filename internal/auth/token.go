package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// generateRandomToken creates a cryptographically secure, URL safe random token
func generateRandomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
