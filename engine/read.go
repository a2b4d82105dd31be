package engine

import (
	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/byteport"
	"github.com/blockdd/ddpt/ptport"
)

// readPhase implements §4.7.3: dispatch by input variant, update
// icbpt to the actual blocks obtained, and set leave_after_write /
// leave_reason on EOF, short read, or non-medium error.
func (e *Engine) readPhase() error {
	ibs := int64(e.Params.IBS)
	chunkBytes := e.Params.BPT * ibs
	if int64(len(e.chunkBuf)) < chunkBytes {
		e.chunkBuf = make([]byte, chunkBytes)
	}
	buf := e.chunkBuf[:e.state.ICBpt*ibs]
	if e.state.PartialWriteBytes > 0 {
		for i := range buf {
			buf[i] = 0
		}
	}

	if e.InPT != nil {
		return e.readPassThrough(buf)
	}
	switch e.In.Variant() {
	case byteport.VariantFifo:
		return e.readFifo(buf)
	case byteport.VariantTape:
		return e.readTape(buf)
	default:
		return e.readPositional(buf)
	}
}

// readPassThrough issues a single READ for the whole chunk; a short
// transfer recomputes ocbpt and never produces a partial output block
// (§4.7.3 "A pass-through short read ... never produces a partial
// output block").
func (e *Engine) readPassThrough(buf []byte) error {
	blocksRead, status, err := e.InPT.Read(ptport.SideInput, buf, int(e.state.ICBpt), e.skip)
	e.state.BytesRead = blocksRead * e.Params.IBS
	if err != nil {
		e.lastPTStatus = status
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = statusToLeaveReason(status)
		return err
	}
	if int64(blocksRead) < e.state.ICBpt {
		e.state.ICBpt = int64(blocksRead)
		e.state.OCBpt = int64(blocksRead) * int64(e.Params.IBS) / int64(e.Params.OBS)
		e.state.PartialWriteBytes = 0
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveNone
	}
	e.Stats.InFull += e.state.ICBpt
	return nil
}

func statusToLeaveReason(status ptport.Status) LeaveReason {
	switch status {
	case ptport.StatusMediumHard:
		return LeaveMediumHard
	default:
		return LeaveOther
	}
}

// readFifo gathers bytes until a full chunk or EOF; a short read is
// not EOF by itself (§4.5).
func (e *Engine) readFifo(buf []byte) error {
	total := 0
	for total < len(buf) {
		n, eof, err := e.In.ReadChunk(buf[total:])
		total += n
		if err != nil {
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveFileError
			return err
		}
		if eof {
			break
		}
		if n == 0 {
			break
		}
	}
	e.state.BytesRead = total
	ibs := int64(e.Params.IBS)
	e.state.ICBpt = int64(total) / ibs
	if int64(total)%ibs != 0 {
		e.state.ICBpt++ // final partial input record; only the bytes actually read are written
	}
	obs := int64(e.Params.OBS)
	e.state.OCBpt = int64(total) / obs
	e.state.PartialWriteBytes = int(int64(total) % obs)
	if total < len(buf) {
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveNone
	}
	e.recordReadCounts(total, len(buf))
	return nil
}

// readPositional handles block/regular inputs, including the coe
// fallback (§4.7.4).
func (e *Engine) readPositional(buf []byte) error {
	ibs := int64(e.Params.IBS)
	offset := int64(e.skip) * ibs
	if err := e.In.SeekTo(offset); err != nil {
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveFileError
		return err
	}

	n, eof, err := e.In.ReadChunk(buf)
	e.state.BytesRead = n

	coeEligible := e.Params.IFlags.Coe &&
		(e.In.Variant() == byteport.VariantRegular || e.In.Variant() == byteport.VariantBlock)

	needsCoe := coeEligible && (isMediumError(err) || (err == nil && n < len(buf) && !eof))
	if needsCoe {
		goodBlocks := int64(n) / ibs
		// Blocks the failed bulk read already obtained whole are full
		// records; everything from here on is accounted for block-by-
		// block inside coeFallback (recovered reads add in_full,
		// unrecovered ones add in_partial via coe_process_eio), so no
		// further generic counting happens after it returns.
		e.Stats.InFull += goodBlocks
		icbpt, leave, reason := e.coeFallback(buf, goodBlocks, e.skip, e.state.ICBpt)
		e.state.ICBpt = icbpt
		obs := int64(e.Params.OBS)
		total := icbpt * ibs
		e.state.OCBpt = total / obs
		e.state.PartialWriteBytes = int(total % obs)
		e.state.LeaveAfterWrite = leave
		e.state.LeaveReason = reason
		return nil
	}

	if err != nil {
		if isMediumError(err) {
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveMediumHard
		} else {
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveFileError
		}
		return err
	}

	if eof || n < len(buf) {
		e.state.ICBpt = int64(n) / ibs
		if int64(n)%ibs != 0 {
			e.state.ICBpt++
		}
		obs := int64(e.Params.OBS)
		total := e.state.ICBpt * ibs
		// Zero the unread tail of a final partial input record so it is
		// not padded with bytes an earlier chunk left in the buffer.
		for i := int64(n); i < total; i++ {
			buf[i] = 0
		}
		e.state.OCBpt = total / obs
		e.state.PartialWriteBytes = int(total % obs)
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveNone
	}
	if n > 0 {
		e.Stats.Coe.Reset()
	}
	e.recordReadCounts(n, len(buf))
	return nil
}

// recordReadCounts updates in_full/in_partial per invariant 4: a
// record is full when it consumed a whole ibs, partial otherwise.
func (e *Engine) recordReadCounts(gotBytes, wantBytes int) {
	ibs := e.Params.IBS
	full := int64(gotBytes / ibs)
	e.Stats.InFull += full
	if gotBytes%ibs != 0 {
		e.Stats.InPartial++
	}
	_ = wantBytes
}

// readTape implements §4.7.5.
func (e *Engine) readTape(buf []byte) error {
	tp, _ := e.In.(*byteport.TapePort)
	ibs := int64(e.Params.IBS)
	summ := byteport.NewReadSummarizer(int(ibs))

	var total int64
	for total < e.state.ICBpt*ibs {
		blockBuf := buf[total : total+ibs]
		n, eof, err := e.In.ReadChunk(blockBuf)
		summ.Observe(n)
		if err != nil {
			summ.Flush()
			if tp != nil && err == byteport.ErrTapeBlockTooLarge {
				e.state.LeaveAfterWrite = true
				e.state.LeaveReason = LeaveOther
				return err
			}
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveFileError
			return err
		}
		if eof {
			summ.Flush()
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveNone
			break
		}
		total += int64(n)
		if int64(n) < ibs {
			summ.Flush()
			log.Debug("engine: tape short read, continuing iteration (TAPE_SHORT_READ)")
			e.state.LeaveAfterWrite = true
			e.state.LeaveReason = LeaveTapeShortRead
			break
		}
	}
	summ.Flush()

	e.state.ICBpt = total / ibs
	if total%ibs != 0 {
		e.state.ICBpt++
	}
	obs := int64(e.Params.OBS)
	e.state.OCBpt = (e.state.ICBpt * ibs) / obs
	e.state.PartialWriteBytes = int((e.state.ICBpt * ibs) % obs)
	e.recordReadCounts(int(total), len(buf))
	return nil
}
