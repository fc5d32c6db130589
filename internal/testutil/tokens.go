// Package testutil provides deterministic helpers shared by tests.
package testutil

import (
	"fmt"
	"sync"
)

// TokenSequence issues run tokens in a fixed, sortable order.
//
// Production code mints UUIDv7 run tokens; tests that pin store ordering or
// golden output need tokens that are stable across runs. Tokens are zero
// padded so lexicographic order matches issue order.
//
// Thread-safe: all methods lock an internal mutex.
type TokenSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewTokenSequence creates a sequence with the given prefix. An empty
// prefix defaults to "run".
func NewTokenSequence(prefix string) *TokenSequence {
	if prefix == "" {
		prefix = "run"
	}
	return &TokenSequence{prefix: prefix}
}

// Next returns the next token, e.g. "run-000001".
func (s *TokenSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%06d", s.prefix, s.seq)
}

// Reset restarts the sequence so a scenario can be replayed with
// identical tokens.
func (s *TokenSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
