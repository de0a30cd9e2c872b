package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator stands in for the random identifiers services assign to new
// bookings. Its output has the same shape as the fixture builders' IDs.
type IDGenerator struct {
	prefix string
	seq    atomic.Uint64
}

// NewIDGenerator returns a generator of "<prefix>-001", "<prefix>-002", ...
// The prefix defaults to "booking".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "booking"
	}
	return &IDGenerator{prefix: prefix}
}

// Next is safe for concurrent use, so it can back services under load tests.
func (g *IDGenerator) Next() string {
	return sequenceID(g.prefix, g.seq.Add(1))
}

func sequenceID(prefix string, n uint64) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}
