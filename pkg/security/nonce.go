package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// StateNonce returns a 128-bit random value, hex-encoded. It binds an
// authorization redirect to its callback; guessing one must be infeasible.
func StateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
