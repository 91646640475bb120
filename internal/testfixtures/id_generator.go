package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic actor names and numeric identifiers.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter int64
}

// NewIDGenerator returns a generator whose names start with prefix, or
// "partner" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "partner"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next name in the sequence, e.g. "partner-1".
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.NextInt64())
}

// NextInt64 returns the next number in the sequence, starting at 1.
func (g *IDGenerator) NextInt64() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.counter
}

// Reset restarts the sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}
