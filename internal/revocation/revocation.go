// Package revocation keeps the set of session tokens that were logged out
// before they expired.
package revocation

import (
	"crypto/sha256"
	"sync"
	"time"
)

// DefaultTTL matches the lifetime of an access token. A token revoked longer
// ago than that has expired on its own and no longer needs tracking.
const DefaultTTL = 72 * time.Hour

// Set tracks revoked tokens. Tokens are stored by SHA-256 digest and expired
// entries are evicted inline during Revoke.
type Set struct {
	mu      sync.Mutex
	entries map[[32]byte]time.Time
	ttl     time.Duration
	clock   Clock
}

// NewSet creates a Set with the given TTL and clock. A non-positive ttl
// selects DefaultTTL and a nil clock uses the system time.
func NewSet(ttl time.Duration, clock Clock) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Set{
		entries: make(map[[32]byte]time.Time),
		ttl:     ttl,
		clock:   clock,
	}
}

// Revoke records token and returns true if it was not already revoked.
// The empty token is never recorded.
func (s *Set) Revoke(token string) bool {
	if token == "" {
		return false
	}
	key := sha256.Sum256([]byte(token))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanup()

	if _, exists := s.entries[key]; exists {
		return false
	}
	s.entries[key] = s.clock.Now()
	return true
}

// IsRevoked reports whether token was revoked within the TTL
func (s *Set) IsRevoked(token string) bool {
	key := sha256.Sum256([]byte(token))

	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.entries[key]
	if !ok {
		return false
	}
	return !at.Before(s.clock.Now().Add(-s.ttl))
}

// Len returns the number of tracked tokens, expired ones included until the
// next Revoke
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanup evicts expired entries. Must be called with mu held.
func (s *Set) cleanup() {
	cutoff := s.clock.Now().Add(-s.ttl)
	for k, v := range s.entries {
		if v.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}
