package byteport

import (
	"io"
	"os"

	"github.com/blockdd/ddpt/internal/fifo"
	"github.com/blockdd/ddpt/stats"
)

// fifoGatherSize bounds how much a single underlying Read syscall pulls
// in ahead of the caller's request. A pipe read can return anywhere
// from 1 byte up to this much; the gather buffer holds the remainder
// so the next ReadChunk calls don't re-enter the kernel for bytes
// already sitting in user space.
const fifoGatherSize = 64 * 1024

// FifoPort implements Port for named pipes and stdin/stdout ('-'): no
// seek is ever issued; the port pretends its position tracks along so
// the engine's bookkeeping stays consistent, but the descriptor itself
// never moves (§4.5). Reads may return short without that being
// EOF — callers gather bytes across multiple ReadChunk calls until a
// full chunk or a true EOF. Internally, underlying reads are staged
// through a gather buffer (§4.5 "tape devices mid-block"-style short
// reads) rather than copied straight into the caller's slice, so a
// caller requesting less than one underlying read's worth still drains
// the rest on its next call instead of the surplus being discarded.
type FifoPort struct {
	f       *os.File
	pos     int64
	stats   *stats.Stats
	gather  *fifo.Fifo
	staging []byte
}

func NewFifoPort(f *os.File, st *stats.Stats) *FifoPort {
	return &FifoPort{
		f:       f,
		stats:   st,
		gather:  fifo.New(fifoGatherSize),
		staging: make([]byte, fifoGatherSize),
	}
}

func (p *FifoPort) Variant() Variant { return VariantFifo }

// SeekTo never issues a syscall; it only advances the bookkeeping
// position the engine uses to detect drift elsewhere.
func (p *FifoPort) SeekTo(offset int64) error {
	p.pos = offset
	return nil
}

func (p *FifoPort) ReadChunk(buf []byte) (int, bool, error) {
	if p.gather.Occupied() == 0 {
		want := p.gather.Space()
		if want > len(p.staging) {
			want = len(p.staging)
		}
		n, err := retryInterrupted(p.stats, func() (int, error) { return p.f.Read(p.staging[:want]) })
		if n > 0 {
			p.gather.Write(p.staging[:n])
		}
		if err == io.EOF {
			if n == 0 {
				return 0, true, nil
			}
			// Bytes arrived alongside EOF: deliver them now and let the
			// next call, finding the gather buffer empty, report EOF.
		} else if err != nil {
			return 0, false, err
		}
	}
	n := p.gather.Read(buf)
	p.pos += int64(n)
	// A short read on a fifo is normal mid-stream and is NOT end of data.
	return n, false, nil
}

func (p *FifoPort) WriteChunk(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := retryInterrupted(p.stats, func() (int, error) { return p.f.Write(buf[total:]) })
		total += n
		p.pos += int64(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

func (p *FifoPort) Close() error {
	return p.f.Close()
}
