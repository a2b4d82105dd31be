// Package engine implements the copy engine (component 7): the
// per-chunk read/transform/compare/write state machine of §4.7,
// consuming the clock & signal gate, error-block journal, statistics
// accumulator, pass-through port, byte port, and count planner.
package engine

// LeaveReason enumerates why the copy loop is about to exit, per the
// CopyState.leave_reason field of the data model. LeaveTapeShortRead is
// deliberately not terminal — see its doc comment.
type LeaveReason int

const (
	// LeaveNone means "no reason yet" while mid-iteration, and also
	// "normal EOF / planned count reached" once the loop has actually
	// decided to leave.
	LeaveNone LeaveReason = iota
	LeaveMediumHard
	LeaveOther
	LeaveFileError
	// LeaveTapeShortRead marks "the rest of this iteration is handled
	// differently" — a tape short read permits the loop to continue
	// rather than exit, because tape files are written block-for-block
	// and short reads are normal mid-stream (§4.7.5 / §9).
	LeaveTapeShortRead
)

func (r LeaveReason) String() string {
	switch r {
	case LeaveNone:
		return "none"
	case LeaveMediumHard:
		return "medium-hard"
	case LeaveOther:
		return "other"
	case LeaveFileError:
		return "file-error"
	case LeaveTapeShortRead:
		return "tape-short-read"
	default:
		return "unknown"
	}
}

// CopyState is the per-chunk state reset at the top of each loop
// iteration (§3 "Per-chunk state").
type CopyState struct {
	ICBpt             int64 // input blocks actually read this iteration (<= bpt)
	OCBpt             int64 // output blocks corresponding to icbpt*ibs bytes, rounded down
	PartialWriteBytes int   // bytes beyond ocbpt*obs forming a short final write

	IfFilePos int64 // not maintained by the engine; see reset
	OfFilePos int64 // not maintained by the engine; see reset

	BytesRead int // observed bytes from the read phase this iteration
	BytesOf   int // observed bytes written to OFILE this iteration
	BytesOf2  int // observed bytes written to OFILE2 this iteration

	LeaveAfterWrite bool
	LeaveReason     LeaveReason

	// skipWrite and subdivideOps carry the sparse/sparing/trim phase's
	// decision (§4.7.7) forward into the write phase; subdivideOps
	// takes priority when non-empty (fine-comparison mode).
	skipWrite    bool
	subdivideOps []Op
}

// reset clears the per-iteration fields, per the data model's
// "Reset at the top of each iteration" lifecycle note. IfFilePos and
// OfFilePos are not touched here, and nothing else in the engine sets
// them: the believed descriptor position used for seek elision is
// tracked inside byteport.RegularPort.
func (cs *CopyState) reset() {
	cs.ICBpt = 0
	cs.OCBpt = 0
	cs.PartialWriteBytes = 0
	cs.BytesRead = 0
	cs.BytesOf = 0
	cs.BytesOf2 = 0
	cs.LeaveAfterWrite = false
	cs.LeaveReason = LeaveNone
	cs.skipWrite = false
	cs.subdivideOps = nil
}
