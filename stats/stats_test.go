package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoeTrackerObserveTracksRange(t *testing.T) {
	c := NewCoeTracker()
	assert.Equal(t, 1, c.Observe(10))
	assert.Equal(t, 2, c.Observe(12))
	assert.EqualValues(t, 10, c.LowestUnrecovered)
	assert.EqualValues(t, 12, c.HighestUnrecovered)
	c.Reset()
	assert.Equal(t, 0, c.Count)
	// range is sticky across resets, only the consecutive count resets
	assert.EqualValues(t, 10, c.LowestUnrecovered)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.InFull = 5
	snap := s.Snapshot()
	s.InFull = 10
	assert.EqualValues(t, 5, snap.InFull)
	assert.EqualValues(t, 10, s.InFull)
}
