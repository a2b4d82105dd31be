package engine

import (
	"errors"
	"syscall"
)

// ErrShortOutputBlock is returned internally when a block/regular
// output write came back short outside of the tape/pass-through
// special cases — §4.7.9 "a short write on block/regular is
// treated as output full and terminates".
var ErrShortOutputBlock = errors.New("engine: output device full")

// ErrOFile2Write marks an OFILE2 write failure, fatal to the iteration
// per §4.7.6 / §7 error kind 10.
var ErrOFile2Write = errors.New("engine: secondary output write failed")

// isMediumError reports whether err is the class of error the coe
// fallback and the §7 taxonomy call "medium-hard": EIO or EREMOTEIO.
func isMediumError(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EREMOTEIO)
}
