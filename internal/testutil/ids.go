package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs returns predictable UUIDs for golden snapshot comparison:
//
//	00000000-0000-0000-0000-000000000001
//	00000000-0000-0000-0000-000000000002
//	...
//
// A prefix byte in the first position keeps generators for different
// purposes from colliding.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix byte
	n      uint64
}

// NewSequentialIDs creates a generator whose ids start with prefix.
func NewSequentialIDs(prefix byte) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next id in sequence.
//
// Implements model.IDGenerator.
func (g *SequentialIDs) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return SeqID(g.prefix, g.n)
}

// SeqID builds the id SequentialIDs would return for prefix and n.
func SeqID(prefix byte, n uint64) uuid.UUID {
	id, err := uuid.Parse(fmt.Sprintf("%02x000000-0000-0000-0000-%012x", prefix, n))
	if err != nil {
		panic(fmt.Sprintf("testutil: bad sequential id: %v", err))
	}
	return id
}
