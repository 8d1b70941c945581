package engine

import "sync/atomic"

// Clock hands out build event sequence numbers. Seqs order trace events
// across concurrently running rules: a rule starts at a seq greater than
// the publish seq of every dependency it reads. A clock shared by several
// engines keeps counting across their builds.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one event. It is safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}
