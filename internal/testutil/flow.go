package testutil

import (
	"fmt"
	"sync"
)

// SequentialPassIDs generates pass ids "<prefix>-0001", "<prefix>-0002", ...
//
// Golden event logs depend on stable pass ids, so tests use this in place of
// the UUIDv7 generator.
type SequentialPassIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialPassIDs creates a generator. An empty prefix becomes "pass".
func NewSequentialPassIDs(prefix string) *SequentialPassIDs {
	if prefix == "" {
		prefix = "pass"
	}
	return &SequentialPassIDs{prefix: prefix}
}

// Generate returns the next pass id.
func (g *SequentialPassIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
