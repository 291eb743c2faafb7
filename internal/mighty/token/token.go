package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateLen is the number of random bytes behind an OAuth state value
const StateLen = 16

// GenState returns an URL safe random value binding a callback to its authorization request.
func GenState() (string, error) {
	b := make([]byte, StateLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
