package engine

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/byteport"
)

// writeSecondary implements §4.7.6: mirror the same bytes to
// OFILE2 before the primary write; errors here are fatal to the
// iteration.
func (e *Engine) writeSecondary() error {
	n := int(e.state.OCBpt*int64(e.Params.OBS)) + e.state.PartialWriteBytes
	buf := e.chunkBuf[:int64(n)]

	written := 0
	for written < len(buf) {
		n, err := e.Out2.WriteChunk(buf[written:])
		written += n
		if err != nil {
			return ErrOFile2Write
		}
		if n == 0 {
			return ErrOFile2Write
		}
		if e.Out2.Variant() != byteport.VariantFifo {
			break
		}
	}
	e.state.BytesOf2 = written
	return nil
}

// sparseSparingTrimPhase implements §4.7.7. It is a no-op unless
// sparse or sparing is requested on the output side.
func (e *Engine) sparseSparingTrimPhase() error {
	of := &e.Params.OFlags
	if of.Sparse == 0 && !of.Sparing {
		return nil
	}

	chunkLen := int(e.state.OCBpt*int64(e.Params.OBS)) + e.state.PartialWriteBytes
	chunk := e.chunkBuf[:chunkLen]

	var equal func(offset, length int) bool
	if of.Sparing {
		existing := make([]byte, chunkLen)
		if err := e.readExistingOutput(existing); err != nil {
			// Sparing requires a readable, seekable output; if that
			// fails, fall back to writing everything this iteration.
			log.Debugf("engine: sparing read of existing output failed, writing whole chunk: %v", err)
			e.state.skipWrite = false
			return nil
		}
		equal = func(offset, length int) bool {
			for i := 0; i < length; i++ {
				if chunk[offset+i] != existing[offset+i] {
					return false
				}
			}
			return true
		}
	} else {
		equal = zeroEqual(chunk)
	}

	obpcBytes := int(e.Params.OBPC) * e.Params.OBS
	wholeEqual := equal(0, chunkLen)
	action := decideAction(e.Params.OBPC, wholeEqual)

	switch action {
	case ActionSkipAll:
		e.state.skipWrite = true
		e.Stats.OutSparse += e.state.OCBpt
		e.maybeTrim(0, chunkLen)
		return nil
	case ActionWriteAll:
		e.state.skipWrite = false
		return nil
	default: // ActionSubdivide
		ops := subdivide(chunkLen, obpcBytes, equal)
		e.state.subdivideOps = ops
		return nil
	}
}

func (e *Engine) readExistingOutput(buf []byte) error {
	offset := int64(e.seek) * int64(e.Params.OBS)
	if err := e.Out.SeekTo(offset); err != nil {
		return err
	}
	total := 0
	for total < len(buf) {
		n, eof, err := e.Out.ReadChunk(buf[total:])
		total += n
		if err != nil {
			return err
		}
		if eof || n == 0 {
			break
		}
	}
	if total < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// maybeTrim issues a WRITE SAME to trim a skipped, all-zero run when
// wsame16 is set and the output is pass-through (§4.7.7). Trim
// errors are non-fatal: they are counted and the loop continues.
func (e *Engine) maybeTrim(offset, length int) {
	if !e.Params.OFlags.WSame16 || e.OutPT == nil {
		return
	}
	obs := e.Params.OBS
	lba := e.seek + uint64(offset/obs)
	nblocks := length / obs
	if err := e.OutPT.WriteSame(e.zeros[:obs], obs, nblocks, lba); err != nil {
		e.Stats.TrimErrs++
		log.Warnf("engine: trim at lba 0x%x failed: %v", lba, err)
	}
}

// writePhase implements §4.7.9.
func (e *Engine) writePhase() error {
	if len(e.state.subdivideOps) > 0 {
		return e.writeSubdivided()
	}
	if e.state.skipWrite {
		return nil
	}

	n := int(e.state.OCBpt*int64(e.Params.OBS)) + e.state.PartialWriteBytes
	buf := e.chunkBuf[:n]

	if e.OutPT != nil {
		return e.writePassThrough(buf)
	}
	switch e.Out.Variant() {
	case byteport.VariantTape:
		return e.writeTape(buf)
	case byteport.VariantDevNull:
		_, err := e.Out.WriteChunk(buf)
		e.state.BytesOf = len(buf)
		return err
	default:
		return e.writePositional(buf)
	}
}

func (e *Engine) writeSubdivided() error {
	for _, op := range e.state.subdivideOps {
		seg := e.chunkBuf[op.Offset : op.Offset+op.Length]
		if op.Kind == OpSkip {
			e.Stats.OutSparse += int64(op.Length) / int64(e.Params.OBS)
			e.maybeTrim(op.Offset, op.Length)
			continue
		}
		if err := e.writeSegment(seg, int64(op.Offset)); err != nil {
			return err
		}
		e.recordWriteCounts(op.Length)
	}
	e.state.BytesOf = int(e.state.OCBpt*int64(e.Params.OBS)) + e.state.PartialWriteBytes
	return nil
}

func (e *Engine) writeSegment(buf []byte, relOffset int64) error {
	offset := int64(e.seek)*int64(e.Params.OBS) + relOffset
	if e.OutPT != nil {
		_, err := e.OutPT.Write(buf, len(buf)/e.Params.OBS, uint64(offset)/uint64(e.Params.OBS))
		return err
	}
	if err := e.Out.SeekTo(offset); err != nil {
		return err
	}
	n, err := e.Out.WriteChunk(buf)
	if offset+int64(n) > e.lastWriteEnd {
		e.lastWriteEnd = offset + int64(n)
	}
	return err
}

func (e *Engine) writePassThrough(buf []byte) error {
	n := len(buf)
	if e.state.PartialWriteBytes > 0 {
		if e.Params.OFlags.Pad {
			padded := make([]byte, n+(e.Params.OBS-e.state.PartialWriteBytes))
			copy(padded, buf)
			buf = padded
		} else {
			log.Warnf("engine: dropping %d residual bytes, pad not set", e.state.PartialWriteBytes)
			buf = buf[:n-e.state.PartialWriteBytes]
		}
	}
	status, err := e.OutPT.Write(buf, len(buf)/e.Params.OBS, e.seek)
	e.state.BytesOf = len(buf)
	if err != nil {
		e.lastPTStatus = status
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = statusToLeaveReason(status)
		return err
	}
	e.Stats.OutFull += int64(len(buf)) / int64(e.Params.OBS)
	return nil
}

func (e *Engine) writeTape(buf []byte) error {
	if e.state.PartialWriteBytes > 0 && !e.Params.OFlags.NoPad {
		padded := make([]byte, len(buf)+(e.Params.OBS-e.state.PartialWriteBytes))
		copy(padded, buf)
		buf = padded
	}
	n, err := e.Out.WriteChunk(buf)
	e.state.BytesOf = n
	if err != nil {
		if e.Params.OFlags.IgnoreEW {
			// Early-warning EOM: retry once before treating as a fatal
			// medium-full condition (§4.7.9).
			n2, err2 := e.Out.WriteChunk(buf)
			if err2 == nil {
				e.state.BytesOf = n2
				e.recordWriteCounts(n2)
				return nil
			}
			return err2
		}
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveMediumHard
		return err
	}
	e.recordWriteCounts(n)
	return nil
}

func (e *Engine) writePositional(buf []byte) error {
	offset := int64(e.seek) * int64(e.Params.OBS)
	if err := e.Out.SeekTo(offset); err != nil {
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveFileError
		return err
	}
	n, err := e.Out.WriteChunk(buf)
	e.state.BytesOf = n
	if err != nil {
		e.state.LeaveAfterWrite = true
		e.state.LeaveReason = LeaveFileError
		return err
	}
	e.recordWriteCounts(n)
	if offset+int64(n) > e.lastWriteEnd {
		e.lastWriteEnd = offset + int64(n)
	}
	return nil
}

func (e *Engine) recordWriteCounts(gotBytes int) {
	obs := e.Params.OBS
	full := int64(gotBytes / obs)
	e.Stats.OutFull += full
	if gotBytes%obs != 0 {
		e.Stats.OutPartial++
	}
}
