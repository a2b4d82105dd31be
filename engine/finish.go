package engine

import (
	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/byteport"
	"github.com/blockdd/ddpt/ptport"
)

// postWriteBookkeeping implements §4.7.10: cache-advice hook,
// dd_count/skip/seek advancement, and the loop's exit test.
func (e *Engine) postWriteBookkeeping() (done bool, reason LeaveReason, err error) {
	e.adviseDiscard()

	// dd_count may go negative here if a fifo surprised the engine with
	// more data than expected; the guard below (only decrement while
	// positive) is retained bit-for-bit per the open-question decision
	// in the design ledger, not dropped as "obviously wrong".
	if e.ddCount > 0 {
		e.ddCount -= e.state.ICBpt
	}
	e.skip += uint64(e.state.ICBpt)
	e.seek += uint64(e.state.OCBpt)

	if e.state.LeaveAfterWrite && e.state.LeaveReason != LeaveTapeShortRead {
		return true, e.state.LeaveReason, nil
	}
	if e.ddCount == 0 {
		return true, LeaveNone, nil
	}
	return false, LeaveNone, nil
}

func (e *Engine) adviseDiscard() {
	ibs := int64(e.Params.IBS)
	inOffset := int64(e.skip) * ibs
	inLen := e.state.ICBpt * ibs
	if adv, ok := e.In.(byteport.CacheAdvisor); ok && inLen > 0 {
		adv.AdviseDiscard(inOffset, inLen)
	}

	obs := int64(e.Params.OBS)
	outOffset := int64(e.seek) * obs
	outLen := e.state.OCBpt*obs + int64(e.state.PartialWriteBytes)
	if adv, ok := e.Out.(byteport.CacheAdvisor); ok && outLen > 0 {
		adv.AdviseDiscard(outOffset, outLen)
	}
}

// terminate implements §4.7.11, the end-of-copy cleanup.
func (e *Engine) terminate() {
	of := &e.Params.OFlags

	// Pinning the file length applies to any regular+sparse output,
	// independent of strunc: without it, a trailing skipped (all-zero)
	// block leaves the file short of its logical length. sparse>=2
	// deliberately opts out — that's how "preserve the trailing hole"
	// is requested (§4.7.7).
	//
	// The pin is only valid when the file is actually shorter than its
	// logical length: logicalEnd<=lastWriteEnd means every block up to
	// seek was really written (or the last write already reached past
	// it), and pinning unconditionally would reseek into already-written
	// data and zero it out. seek==0 falls out of this the same way,
	// since logicalEnd is then 0 and can never exceed lastWriteEnd>=0.
	if e.outputIsRegular && of.Sparse == 1 {
		logicalEnd := int64(e.seek) * int64(e.Params.OBS)
		if logicalEnd > e.lastWriteEnd {
			e.writeZeroPin()
		}
	}

	if of.STrunc {
		e.truncateOutput()
	}

	if of.FDataSync || of.FSync {
		e.syncOutput()
	}

	if of.SSync && e.OutPT != nil {
		if err := e.OutPT.SyncCache(ptport.SideOutput); err != nil {
			log.Warnf("engine: sync cache failed: %v", err)
		}
	}
}

// writeZeroPin writes a single zero block at seek-1 to pin the sparse
// output file's length (§4.7.11).
func (e *Engine) writeZeroPin() {
	obs := e.Params.OBS
	if len(e.zeros) < obs {
		e.zeros = make([]byte, obs)
	}
	offset := int64(e.seek-1) * int64(obs)
	if err := e.Out.SeekTo(offset); err != nil {
		log.Warnf("engine: seek for sparse length-pin failed: %v", err)
		return
	}
	if _, err := e.Out.WriteChunk(e.zeros[:obs]); err != nil {
		log.Warnf("engine: sparse length-pin write failed: %v", err)
	}
}

// truncator is implemented by ports that can shrink their backing file
// (§4.7.7 "Truncate-after" and §4.7.11).
type truncator interface {
	Truncate(size int64) error
}

func (e *Engine) truncateOutput() {
	t, ok := e.Out.(truncator)
	if !ok {
		return
	}
	// Truncate to the logical length (seek*obs), not the highest byte
	// physically written: a trailing sparse hole means those differ, and
	// oflag=strunc means "the file's length is exactly what seek says",
	// not "whatever happened to be written".
	logicalEnd := int64(e.seek) * int64(e.Params.OBS)
	if err := t.Truncate(logicalEnd); err != nil {
		log.Warnf("engine: truncate to %d failed: %v", logicalEnd, err)
	}
}

type syncer interface {
	Sync() error
}

func (e *Engine) syncOutput() {
	s, ok := e.Out.(syncer)
	if !ok {
		return
	}
	if err := s.Sync(); err != nil {
		log.Warnf("engine: sync failed: %v", err)
	}
}
