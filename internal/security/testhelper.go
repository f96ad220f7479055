package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"
)

// NewTestTokenProvider returns a TokenProvider backed by a fresh ECDSA P-256
// key pair. For tests only.
func NewTestTokenProvider(t *testing.T, sessionTTL time.Duration) *TokenProvider {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewTokenProvider(key, &key.PublicKey, "docshare-auth", "docshare-api", sessionTTL)
}
