package byteport

import (
	"errors"
	"io"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/stats"
)

// ErrTapeBlockTooLarge is the descriptive error substituted for the raw
// ENOMEM a tape driver reports when asked to read a block larger than
// the supplied buffer (§4.7.5).
var ErrTapeBlockTooLarge = errors.New("byteport: tape reported a block larger than the requested read size (ENOMEM)")

// TapePort implements Port for tape devices: each read asks for an
// exact byte count and tape drives deliver exactly one physical block
// per call, so no read-until-full looping happens here the way it does
// for fifo. A zero-length read (no error) signals a filemark/EOF; any
// other short read is normal mid-stream behavior for a tape written
// block-for-block and is reported to the engine as-is, not as EOF — the
// engine decides whether that is TAPE_SHORT_READ (§4.7.5 / §9
// "deliberately not a terminal state").
type TapePort struct {
	f     *os.File
	stats *stats.Stats
}

func NewTapePort(f *os.File, st *stats.Stats) *TapePort {
	return &TapePort{f: f, stats: st}
}

func (p *TapePort) Variant() Variant { return VariantTape }

// SeekTo is a no-op for tape: position is controlled by the drive's own
// block-advance semantics, not byte offsets.
func (p *TapePort) SeekTo(offset int64) error { return nil }

func (p *TapePort) ReadChunk(buf []byte) (int, bool, error) {
	n, err := retryInterrupted(p.stats, func() (int, error) { return p.f.Read(buf) })
	if errors.Is(err, syscall.ENOMEM) {
		log.Warnf("byteport: tape read requested %d bytes, device reported oversize block", len(buf))
		return 0, false, ErrTapeBlockTooLarge
	}
	if err == io.EOF || (err == nil && n == 0) {
		return 0, true, nil
	}
	if err != nil {
		return n, false, err
	}
	return n, false, nil
}

func (p *TapePort) WriteChunk(buf []byte) (int, error) {
	return retryInterrupted(p.stats, func() (int, error) { return p.f.Write(buf) })
}

func (p *TapePort) Close() error {
	return p.f.Close()
}

// ReadSummarizer accumulates consecutive tape reads of equal length and
// emits a single log line when the length changes or the loop ends,
// per §4.7.5: `"(N [short ]reads of M byte[s])"` for N >= 1.
type ReadSummarizer struct {
	requested int
	length    int
	count     int
}

// NewReadSummarizer creates a summarizer for reads that each requested
// `requested` bytes.
func NewReadSummarizer(requested int) *ReadSummarizer {
	return &ReadSummarizer{requested: requested}
}

// Observe records one completed read of n bytes, flushing the pending
// run first if the length changed.
func (s *ReadSummarizer) Observe(n int) {
	if s.count > 0 && n != s.length {
		s.flush()
	}
	s.length = n
	s.count++
}

// Flush emits the pending run, if any, and resets.
func (s *ReadSummarizer) Flush() {
	s.flush()
}

func (s *ReadSummarizer) flush() {
	if s.count < 1 {
		return
	}
	short := ""
	if s.length < s.requested {
		short = "short "
	}
	unit := "bytes"
	if s.length == 1 {
		unit = "byte"
	}
	log.Infof("(%d %sreads of %d %s)", s.count, short, s.length, unit)
	s.count = 0
}
