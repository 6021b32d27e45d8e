package domain

import "sync/atomic"

// Counters are the run counters shared by all validation workers.
type Counters struct {
	total     atomic.Int64
	processed atomic.Int64
	valid     atomic.Int64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Total     int64
	Processed int64
	Valid     int64
}

// Invalid is the number of processed domains that did not resolve.
func (s CounterSnapshot) Invalid() int64 {
	return s.Processed - s.Valid
}

// NewCounters returns counters for a run over total domains.
func NewCounters(total int) *Counters {
	c := &Counters{}
	c.total.Store(int64(total))
	return c
}

// Record marks one domain processed and returns the processed count after it.
// processed is bumped before valid, and Snapshot loads them in the opposite
// order, so a snapshot never shows more valid than processed domains.
func (c *Counters) Record(valid bool) (processed int64) {
	processed = c.processed.Add(1)
	if valid {
		c.valid.Add(1)
	}
	return processed
}

// Snapshot reads all counters.
func (c *Counters) Snapshot() CounterSnapshot {
	valid := c.valid.Load()
	return CounterSnapshot{
		Total:     c.total.Load(),
		Processed: c.processed.Load(),
		Valid:     valid,
	}
}
