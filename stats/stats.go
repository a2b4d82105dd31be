// Package stats implements the copy engine's statistics accumulator
// (component 3). Every counter is mutated from the engine's single
// thread only (§5); the signal-driven reporter takes a Snapshot.
package stats

// CoeTracker is the small sub-object that follows the continue-on-error
// fallback's consecutive-failure count and the observed LBA range of
// unrecovered blocks (§4.7.4 / §9 "Coe state").
type CoeTracker struct {
	Count              int
	LowestUnrecovered  int64 // -1 means "none yet"
	HighestUnrecovered int64
}

func NewCoeTracker() *CoeTracker {
	return &CoeTracker{LowestUnrecovered: -1, HighestUnrecovered: -1}
}

// Reset clears the consecutive-failure counter; the engine calls it
// after any block/regular read that returned data without error,
// per invariant 7.
func (c *CoeTracker) Reset() {
	c.Count = 0
}

// Observe records an unrecovered LBA and bumps the consecutive count.
// It returns the new consecutive count.
func (c *CoeTracker) Observe(lba int64) int {
	c.Count++
	if c.LowestUnrecovered < 0 || lba < c.LowestUnrecovered {
		c.LowestUnrecovered = lba
	}
	if lba > c.HighestUnrecovered {
		c.HighestUnrecovered = lba
	}
	return c.Count
}

// Stats accumulates the monotonic counters named in §2.3 / §8.
type Stats struct {
	InFull    int64
	InPartial int64

	OutFull    int64
	OutPartial int64

	OutSparse            int64
	OutSparsePartialBytes int64

	RecoveredReadErrs   int64
	UnrecoveredReadErrs int64
	RecoveredWriteErrs  int64

	TrimErrs int64

	InterruptedRetries int64

	ResidualSum int64

	Coe CoeTracker
}

func New() *Stats {
	s := &Stats{}
	s.Coe = *NewCoeTracker()
	return s
}

// Snapshot returns a copy safe to read concurrently with further
// mutation by the engine (the engine only ever increases counters
// monotonically within one iteration, so a racy read is stale, never
// torn, for machine-word-sized fields).
func (s *Stats) Snapshot() Stats {
	return *s
}

// UnrecoveredCount reports the number of distinct unrecovered LBAs
// tracked; with the engine's one-error-per-block coe fallback this
// equals UnrecoveredReadErrs (invariant 5).
func (s *Stats) UnrecoveredCount() int64 {
	return s.UnrecoveredReadErrs
}
