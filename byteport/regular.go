package byteport

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/blockdd/ddpt/stats"
)

// RegularPort implements Port for regular files, block devices, and the
// catch-all char/other variants: seek-if-needed, then read/write. A
// short read near EOF is legal and signals natural end of data.
type RegularPort struct {
	f       *os.File
	variant Variant
	pos     int64 // kernel-side offset the engine believes the descriptor is at
	known   bool
	stats   *stats.Stats
}

// NewRegularPort wraps an already-opened file. variant should be
// VariantRegular, VariantBlock, VariantChar, or VariantOther — all four
// share the same seek-if-needed positional rules (§4.5, §9
// "default seek-if-needed mixin for positional variants").
func NewRegularPort(f *os.File, variant Variant, st *stats.Stats) *RegularPort {
	return &RegularPort{f: f, variant: variant, stats: st}
}

func (p *RegularPort) Variant() Variant { return p.variant }

func (p *RegularPort) SeekTo(offset int64) error {
	if p.known && p.pos == offset {
		return nil
	}
	if _, err := p.f.Seek(offset, io.SeekStart); err != nil {
		p.known = false
		return err
	}
	p.pos = offset
	p.known = true
	return nil
}

func (p *RegularPort) ReadChunk(buf []byte) (int, bool, error) {
	n, err := retryInterrupted(p.stats, func() (int, error) { return p.f.Read(buf) })
	if p.known {
		p.pos += int64(n)
	}
	if err == io.EOF {
		return n, true, nil
	}
	if err != nil {
		p.known = false
		return n, false, err
	}
	// A short read that isn't io.EOF but also isn't a full buffer still
	// means end of data for regular/block files: os.File.Read only
	// returns n < len(buf) without io.EOF at true EOF on some
	// platforms/pipes; regular files signal it via the explicit io.EOF
	// above, so n < len(buf) here is the "read everything there was"
	// case for block devices that report a final short block.
	eof := n < len(buf)
	return n, eof, nil
}

func (p *RegularPort) WriteChunk(buf []byte) (int, error) {
	n, err := retryInterrupted(p.stats, func() (int, error) { return p.f.Write(buf) })
	if p.known {
		p.pos += int64(n)
	}
	if err != nil {
		p.known = false
		return n, err
	}
	if n < len(buf) {
		p.known = false
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (p *RegularPort) Close() error {
	return p.f.Close()
}

// Truncate shrinks the backing file, used by the engine's
// strunc/truncate-after termination path (§4.7.7, §4.7.11).
func (p *RegularPort) Truncate(size int64) error {
	return p.f.Truncate(size)
}

// Sync flushes the backing file, used when oflag=fsync/fdatasync is
// set (§4.7.11).
func (p *RegularPort) Sync() error {
	return p.f.Sync()
}

// AdviseDiscard implements byteport.CacheAdvisor via posix_fadvise
// (§4.7.10). Failure is logged and otherwise ignored: the hint is
// an optimization, never load-bearing for correctness.
func (p *RegularPort) AdviseDiscard(offset, length int64) error {
	err := unix.Fadvise(int(p.f.Fd()), offset, length, unix.FADV_DONTNEED)
	if err != nil {
		log.Debugf("byteport: fadvise(DONTNEED) at offset %d failed: %v", offset, err)
	}
	return err
}
