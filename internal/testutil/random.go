package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomString returns a random hex string of the given byte length.
func RandomString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// RandomEmail returns a unique email address for test accounts.
func RandomEmail() string {
	return fmt.Sprintf("op-%s@example.com", RandomString(6))
}
