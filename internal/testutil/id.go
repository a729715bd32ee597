package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator issues session IDs of the form "prefix-000001",
// "prefix-000002", and so on. The same scenario run with the same
// prefix produces byte-identical IDs, which golden trace comparison
// depends on.
//
// Implements engine.IDGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator with the given prefix.
// An empty prefix defaults to "session".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// NewSessionID returns the next ID in the sequence.
func (g *SequenceIDGenerator) NewSessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Count returns how many IDs have been issued.
func (g *SequenceIDGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
