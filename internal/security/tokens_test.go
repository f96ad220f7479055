package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"
)

func TestIssueAndValidateSession(t *testing.T) {
	p := NewTestTokenProvider(t, 30*time.Minute)

	token, expiresAt, err := p.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if token == "" {
		t.Fatal("IssueSession returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiresAt = %v, want future", expiresAt)
	}

	userID, err := p.ValidateSession(token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

func TestValidateSession_Expired(t *testing.T) {
	p := NewTestTokenProvider(t, time.Minute)

	issued := time.Now().UTC()
	p.WithNowFunc(func() time.Time { return issued })
	token, _, err := p.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Advance past the TTL; signature still verifies but exp has passed.
	p.WithNowFunc(func() time.Time { return issued.Add(2 * time.Minute) })
	if _, err := p.ValidateSession(token); err != ErrExpiredToken {
		t.Errorf("ValidateSession = %v, want ErrExpiredToken", err)
	}
}

func TestValidateSession_WrongKey(t *testing.T) {
	p := NewTestTokenProvider(t, time.Minute)
	token, _, err := p.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	other := NewTestTokenProvider(t, time.Minute)
	if _, err := other.ValidateSession(token); err != ErrInvalidToken {
		t.Errorf("ValidateSession with wrong key = %v, want ErrInvalidToken", err)
	}
}

func TestValidateSession_Garbage(t *testing.T) {
	p := NewTestTokenProvider(t, time.Minute)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := p.ValidateSession(tok); err != ErrInvalidToken {
			t.Errorf("ValidateSession(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidateSession_WrongIssuerAudience(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	issuing := NewTokenProvider(key, &key.PublicKey, "other-issuer", "other-api", time.Minute)
	token, _, err := issuing.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	validating := NewTokenProvider(key, &key.PublicKey, "docshare-auth", "docshare-api", time.Minute)
	if _, err := validating.ValidateSession(token); err != ErrInvalidToken {
		t.Errorf("ValidateSession = %v, want ErrInvalidToken", err)
	}
}
