package testutil

import (
	"fmt"
	"sync"
)

// SequentialTraceIDs generates "<prefix>-0001", "<prefix>-0002", ... and
// never runs out.
//
// Unlike engine.FixedGenerator, which returns a predetermined list, this
// generator suits runs whose request count is not known up front, such as
// scenario files.
//
// Safe for concurrent use.
type SequentialTraceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTraceIDs creates a generator. An empty prefix becomes "trace".
func NewSequentialTraceIDs(prefix string) *SequentialTraceIDs {
	if prefix == "" {
		prefix = "trace"
	}
	return &SequentialTraceIDs{prefix: prefix}
}

// Generate returns the next id. Implements engine.TraceIDGenerator.
func (g *SequentialTraceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Count returns how many ids have been handed out.
func (g *SequentialTraceIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
