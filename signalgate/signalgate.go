// Package signalgate implements the clock & signal gate (component 1):
// a process-wide latch holding a pending interrupt signal, a count of
// pending info/status signals, and the copy's monotonic start time. The
// copy engine polls the gate at the well-defined suspension points named
// in §4.7.2/§4.7.8 and nowhere else prints concurrently with it.
package signalgate

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Gate is the single-consumer signal latch. Exactly one Gate should
// exist per process.
type Gate struct {
	fatalSig  atomic.Value // os.Signal
	infoCount atomic.Int32
	start     time.Time

	sigCh  chan os.Signal
	masked atomic.Bool
}

// fatalSignals is the terminate-intent set: interrupt, quit-equivalent,
// and broken-pipe.
var fatalSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE}

// infoSignals is the status-request set.
var infoSignals = []os.Signal{syscall.SIGUSR1}

// New installs handlers for the fatal and info signal sets and starts
// the monotonic clock used for throughput reporting. Notify is issued
// once here and never undone for the life of the Gate (besides Close):
// the latch must keep working regardless of intio, since nothing else
// observes these signals once Notify is lifted (see MaskDuringIO).
func New() *Gate {
	g := &Gate{start: time.Now()}
	g.sigCh = make(chan os.Signal, 8)
	all := append(append([]os.Signal{}, fatalSignals...), infoSignals...)
	signal.Notify(g.sigCh, all...)
	go g.loop()
	return g
}

func (g *Gate) loop() {
	for sig := range g.sigCh {
		if isInfoSignal(sig) {
			g.infoCount.Add(1)
			continue
		}
		g.fatalSig.Store(sig)
	}
}

func isInfoSignal(sig os.Signal) bool {
	for _, s := range infoSignals {
		if s == sig {
			return true
		}
	}
	return false
}

// StartTime returns the moment the gate was created.
func (g *Gate) StartTime() time.Time {
	return g.start
}

// Pending reports the fatal signal latched since New, or nil. It does
// not clear the latch.
func (g *Gate) Pending() os.Signal {
	v := g.fatalSig.Load()
	if v == nil {
		return nil
	}
	return v.(os.Signal)
}

// PendingInfoCount reports and clears the number of info signals
// latched since the previous call.
func (g *Gate) PendingInfoCount() int32 {
	return g.infoCount.Swap(0)
}

// Reraise re-raises sig to the process with its default disposition,
// used after printing final statistics on a fatal signal (§4.1 poll).
func (g *Gate) Reraise(sig os.Signal) {
	signal.Reset(sig)
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		log.Errorf("signalgate: could not find self to re-raise %v: %v", sig, err)
		return
	}
	if err := p.Signal(sig); err != nil {
		log.Errorf("signalgate: re-raising %v failed: %v", sig, err)
	}
}

// MaskDuringIO records whether the engine is currently inside a
// blocking I/O call under intio=0 semantics. It is bookkeeping only:
// Go has no portable way to suspend signal delivery to one goroutine's
// syscalls without suspending it for the whole process (no
// sigprocmask-per-thread without cgo), and doing that here would stop
// signal.Notify from relaying to sigCh at all — silently breaking both
// Pending() and PendingInfoCount() for the rest of the run, not just
// during the masked window. So delivery is left on unconditionally;
// the gate always latches, and the engine's poll points are the only
// thing that actually decides when a signal takes effect.
func (g *Gate) MaskDuringIO(enabled bool) {
	g.masked.Store(enabled)
}

// Masked reports the most recent MaskDuringIO setting.
func (g *Gate) Masked() bool {
	return g.masked.Load()
}

// Close stops signal delivery to the gate.
func (g *Gate) Close() {
	signal.Stop(g.sigCh)
	close(g.sigCh)
}
