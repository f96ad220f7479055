package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets (passwords and OTP codes) using bcrypt.
// Callers must not log or persist the plaintext.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for passwords; short-lived OTP codes can use a lower cost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt digest of secret, suitable for storage in place of
// the plaintext. The digest embeds a per-use salt.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored digest in constant time.
// Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid digest.
func (h *Hasher) Compare(digest string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(digest), secret)
}
