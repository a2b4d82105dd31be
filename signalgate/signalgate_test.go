package signalgate

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartTimeIsSetOnNew(t *testing.T) {
	before := time.Now()
	g := New()
	defer g.Close()
	assert.False(t, g.StartTime().Before(before.Add(-time.Second)))
}

func TestPendingInfoCountAccumulatesAndClears(t *testing.T) {
	g := New()
	defer g.Close()
	g.infoCount.Add(2)
	assert.EqualValues(t, 2, g.PendingInfoCount())
	assert.EqualValues(t, 0, g.PendingInfoCount())
}

func TestPendingNilWhenNoFatalSignalLatched(t *testing.T) {
	g := New()
	defer g.Close()
	assert.Nil(t, g.Pending())
}

// MaskDuringIO must never stop the gate from latching signals: it used
// to call signal.Ignore, which undoes Notify process-wide and leaves
// Pending()/PendingInfoCount() permanently empty for the rest of the
// run, not just during the masked window.
func TestMaskDuringIODoesNotStopSignalLatching(t *testing.T) {
	g := New()
	defer g.Close()
	g.MaskDuringIO(true)
	g.sigCh <- syscall.SIGUSR1
	assert.Eventually(t, func() bool {
		return g.PendingInfoCount() > 0
	}, time.Second, time.Millisecond)
}
