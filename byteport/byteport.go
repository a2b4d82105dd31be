// Package byteport implements the file-type-polymorphic byte port
// (component 5): for each of {block, regular, fifo, tape, dev-null,
// char, other} a uniform read/write/seek abstraction the copy engine
// calls without caring which underlies it. Pass-through sides are
// handled separately by ptport per §4.4; byteport covers every
// other variant named in §4.5.
package byteport

import (
	"errors"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/stats"
)

// Variant tags which file-type rules a Port follows.
type Variant int

const (
	VariantRegular Variant = iota
	VariantBlock
	VariantFifo
	VariantTape
	VariantDevNull
	VariantChar
	VariantOther
)

func (v Variant) String() string {
	switch v {
	case VariantRegular:
		return "regular"
	case VariantBlock:
		return "block"
	case VariantFifo:
		return "fifo"
	case VariantTape:
		return "tape"
	case VariantDevNull:
		return "devnull"
	case VariantChar:
		return "char"
	default:
		return "other"
	}
}

// ErrReadNotPermitted is returned by a dev-null port's Read: §4.5 says
// reads are not permitted from dev-null.
var ErrReadNotPermitted = errors.New("byteport: reads are not permitted on this variant")

// CacheAdvisor is implemented by variants backed by a real file
// descriptor that can take a posix_fadvise-style hint to discard
// recently-read/written ranges from the page cache, so a long
// streaming copy doesn't evict unrelated working-set pages (§4.7.10
// "file-cache advice hook"). Variants without a descriptor to
// advise on (dev-null) simply don't implement this interface.
type CacheAdvisor interface {
	AdviseDiscard(offset, length int64) error
}

// Port is the uniform byte-oriented interface the engine drives for
// every non-pass-through side.
type Port interface {
	Variant() Variant

	// ReadChunk reads up to len(buf) bytes. eof is true only when the
	// variant's own rules say "this short read means end of data" (a
	// plain short read on regular/block at EOF, never on a fifo mid
	// stream unless the fifo itself closed).
	ReadChunk(buf []byte) (n int, eof bool, err error)

	// WriteChunk writes all of buf, looping as needed for variants
	// (fifo) that may accept partial writes while still making forward
	// progress. A short write that is NOT forward progress is returned
	// as an error.
	WriteChunk(buf []byte) (n int, err error)

	// SeekTo requests the descriptor be positioned at the given byte
	// offset before the next I/O, eliding the syscall when the engine's
	// tracked position already matches (lazy seeks, §4.5).
	SeekTo(offset int64) error

	Close() error
}

// retryInterrupted wraps a single blocking syscall with the "retry on
// EINTR, count every retry" policy §9 calls for as a single
// helper applied uniformly.
func retryInterrupted(st *stats.Stats, fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err == nil {
			return n, nil
		}
		if errors.Is(err, syscall.EINTR) {
			if st != nil {
				st.InterruptedRetries++
			}
			log.Debugf("byteport: retrying after interrupted syscall")
			continue
		}
		return n, err
	}
}
