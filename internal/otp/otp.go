// Package otp generates and verifies the 6-digit email verification codes.
//
// Codes are stored only as bcrypt digests next to an expiry timestamp on the
// owning user row; the plaintext exists just long enough to be delivered
// out-of-band. Verification fails closed and never clears state itself, so a
// double call before the caller persists the verified flag stays idempotent.
package otp

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"

	"docshare/internal/security"
)

const (
	// Digits is the code length.
	Digits = 6

	codeMin  = 100000
	codeSpan = 900000 // codes are uniform over [100000, 999999]
)

// ChallengeStore persists a challenge digest against its owning user,
// overwriting any prior challenge in a single write.
type ChallengeStore interface {
	SetOTPChallenge(ctx context.Context, userID, digest string, expiresAt time.Time) error
}

// Generate returns a 6-digit numeric code drawn uniformly from
// [100000, 999999] using crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	code := n.Int64() + codeMin
	return big.NewInt(code).String(), nil
}

// Engine issues and verifies OTP challenges.
type Engine struct {
	hasher *security.Hasher
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewEngine returns an Engine that hashes codes with hasher and expires them
// after ttl according to clock.
func NewEngine(hasher *security.Hasher, ttl time.Duration, clock clockwork.Clock) *Engine {
	return &Engine{hasher: hasher, ttl: ttl, clock: clock}
}

// Issue generates a fresh code for userID, persists its digest and expiry via
// store (replacing any prior challenge), and returns the plaintext for
// delivery. The plaintext is never stored.
func (e *Engine) Issue(ctx context.Context, store ChallengeStore, userID string) (string, error) {
	code, err := Generate()
	if err != nil {
		return "", err
	}
	digest, err := e.hasher.Hash([]byte(code))
	if err != nil {
		return "", err
	}
	expiresAt := e.clock.Now().UTC().Add(e.ttl)
	if err := store.SetOTPChallenge(ctx, userID, digest, expiresAt); err != nil {
		return "", err
	}
	return code, nil
}

// Verify reports whether candidate matches the stored challenge. It fails
// closed: no stored digest, a past expiry, or a digest mismatch all return
// false. Verify does not clear the challenge; the caller does that after
// persisting the verified state.
func (e *Engine) Verify(digest string, expiresAt *time.Time, candidate string) bool {
	if digest == "" || expiresAt == nil {
		return false
	}
	if !e.clock.Now().Before(*expiresAt) {
		return false
	}
	if len(candidate) != Digits {
		return false
	}
	return e.hasher.Compare(digest, []byte(candidate)) == nil
}
