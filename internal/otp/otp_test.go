package otp

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"docshare/internal/security"
)

type memChallengeStore struct {
	userID    string
	digest    string
	expiresAt time.Time
	calls     int
}

func (s *memChallengeStore) SetOTPChallenge(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	s.userID = userID
	s.digest = digest
	s.expiresAt = expiresAt
	s.calls++
	return nil
}

func newTestEngine(clock clockwork.Clock) *Engine {
	return NewEngine(security.NewHasher(bcrypt.MinCost), 10*time.Minute, clock)
}

func TestGenerate_Range(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != Digits {
			t.Fatalf("code %q has %d digits, want %d", code, len(code), Digits)
		}
		if code[0] == '0' {
			t.Fatalf("code %q starts with 0; codes must be in [100000, 999999]", code)
		}
	}
}

func TestIssueAndVerify(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(clock)
	store := &memChallengeStore{}

	code, err := e.Issue(context.Background(), store, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if store.userID != "user-1" {
		t.Errorf("store userID = %q, want user-1", store.userID)
	}
	if store.digest == code {
		t.Fatal("digest equals plaintext code")
	}

	if !e.Verify(store.digest, &store.expiresAt, code) {
		t.Error("Verify with issued code should succeed")
	}
	if e.Verify(store.digest, &store.expiresAt, "000000") {
		t.Error("Verify with wrong code should fail")
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(clock)
	future := clock.Now().Add(time.Minute)

	if e.Verify("", &future, "123456") {
		t.Error("Verify with no stored digest should fail")
	}
	if e.Verify("some-digest", nil, "123456") {
		t.Error("Verify with no expiry should fail")
	}
}

func TestVerify_Expired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(clock)
	store := &memChallengeStore{}

	code, err := e.Issue(context.Background(), store, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.Advance(10*time.Minute + time.Second)
	if e.Verify(store.digest, &store.expiresAt, code) {
		t.Error("Verify past expiry should fail even with the correct code")
	}
}

func TestReissue_InvalidatesOldCode(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(clock)
	store := &memChallengeStore{}

	oldCode, err := e.Issue(context.Background(), store, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	newCode, err := e.Issue(context.Background(), store, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("store calls = %d, want 2", store.calls)
	}

	if oldCode != newCode && e.Verify(store.digest, &store.expiresAt, oldCode) {
		t.Error("old code should not verify after reissue")
	}
	if !e.Verify(store.digest, &store.expiresAt, newCode) {
		t.Error("new code should verify after reissue")
	}
}
