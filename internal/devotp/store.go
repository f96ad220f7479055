// Package devotp provides an in-memory store for OTP plaintexts by email,
// used only when dev OTP mode is enabled (GET /api/dev/otp).
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP codes for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores otp for email, replacing any prior code.
	Put(ctx context.Context, email, otp string)
	// Get returns the otp for email if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, email string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation. Entries expire after the
// store's ttl, matching the OTP challenge window.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store with the given entry lifetime.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		ttl:  ttl,
		nowF: time.Now().UTC,
	}
}

// Put stores otp for email, replacing any prior code.
func (s *MemoryStore) Put(ctx context.Context, email, otp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[email] = entry{otp: otp, expiresAt: s.nowF().Add(s.ttl)}
}

// Get returns the otp for email if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, email string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[email]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, email)
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}
