package utils

import (
	"strings"
	"sync"
)

// KeySet tracks composite keys that have already been emitted
type KeySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeySet creates an empty set
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key made of parts is new, false if it was seen before
func (t *KeySet) Add(parts ...string) bool {
	key := strings.Join(parts, "\x1f")
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.seen[key]; exists {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

// Count returns the number of tracked keys
func (t *KeySet) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
