package engine

import (
	log "github.com/sirupsen/logrus"
)

// coeFallback implements §4.7.4: invoked when the bulk read
// returned fewer bytes than requested or failed with a medium error,
// on block/regular inputs with the coe flag set. It keeps the blocks
// already read whole (goodBlocks of them) and attempts the remaining
// blocks of the chunk one at a time, zero-filling and journaling any
// that fail with a medium error.
//
// buf must be sized for the full chunk (bpt*ibs bytes); startLBA is
// the chunk's first input LBA; totalBlocks is bpt (or fewer, if the
// planner capped the final chunk).
func (e *Engine) coeFallback(buf []byte, goodBlocks int64, startLBA uint64, totalBlocks int64) (icbpt int64, leaveAfterWrite bool, reason LeaveReason) {
	ibs := int64(e.Params.IBS)
	icbpt = goodBlocks

	for i := goodBlocks; i < totalBlocks; i++ {
		lba := startLBA + uint64(i)
		blockBuf := buf[i*ibs : (i+1)*ibs]

		if err := e.In.SeekTo(int64(lba) * ibs); err != nil {
			log.Warnf("engine: coe seek to lba 0x%x failed: %v", lba, err)
			return icbpt, true, LeaveOther
		}
		n, eof, rerr := e.In.ReadChunk(blockBuf)

		switch {
		case rerr != nil && isMediumError(rerr):
			for j := range blockBuf {
				blockBuf[j] = 0
			}
			if reason, terminate := e.coeProcessMediumError(lba); terminate {
				return icbpt, true, reason
			}
			icbpt++
		case rerr != nil:
			log.Warnf("engine: coe single-block read at lba 0x%x failed: %v", lba, rerr)
			return icbpt, true, LeaveOther
		case eof || n < int(ibs):
			// A short read during recovery is treated as EOF for this
			// chunk (§4.7.4 step 6), not an error.
			return icbpt, true, LeaveNone
		default:
			e.Stats.InFull++
			e.Stats.RecoveredReadErrs++
			e.Stats.Coe.Reset()
			icbpt++
		}
	}
	return icbpt, false, LeaveNone
}

// coeProcessMediumError implements coe_process_eio(lba): bumps the
// consecutive-failure tracker, the unrecovered-error counter, and the
// error-block journal; returns (MEDIUM_HARD, true) once coe_limit is
// exceeded.
func (e *Engine) coeProcessMediumError(lba uint64) (LeaveReason, bool) {
	count := e.Stats.Coe.Observe(int64(lba))
	e.Stats.UnrecoveredReadErrs++
	e.Stats.InPartial++
	if e.Journal != nil {
		e.Journal.Record(lba)
	}
	if e.Params.CoeLimit > 0 && count > e.Params.CoeLimit {
		log.Errorf("engine: coe_limit %d exceeded at lba 0x%x", e.Params.CoeLimit, lba)
		return LeaveMediumHard, true
	}
	return LeaveNone, false
}
