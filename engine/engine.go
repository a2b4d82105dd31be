package engine

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/byteport"
	"github.com/blockdd/ddpt/config"
	"github.com/blockdd/ddpt/internal/xcode"
	"github.com/blockdd/ddpt/journal"
	"github.com/blockdd/ddpt/ptport"
	"github.com/blockdd/ddpt/report"
	"github.com/blockdd/ddpt/signalgate"
	"github.com/blockdd/ddpt/stats"
)

// Engine drives the copy loop of §4.7 over one already-opened
// pair (or triple, with OFILE2) of byteport.Port values. A pass-through
// side is driven through the InPT/OutPT ptport.Port fields instead
// (§4.4 keeps CDB construction external); the engine itself never
// builds commands.
type Engine struct {
	Params *config.Params

	In   byteport.Port
	Out  byteport.Port
	Out2 byteport.Port // nil when of2 was not given

	// InPT/OutPT, when non-nil, take priority over In/Out: the
	// corresponding side is a pass-through device and is dispatched
	// through §4.4's command interface instead of byteport (§4.7.3
	// names pass-through as its own read/write dispatch leg).
	InPT  ptport.Port
	OutPT ptport.Port

	Gate     *signalgate.Gate
	Stats    *stats.Stats
	Journal  *journal.Journal // nil when errblk is not enabled
	Reporter *report.Reporter

	ddCount int64
	skip    uint64
	seek    uint64

	zeros    []byte
	chunkBuf []byte
	state    CopyState

	outputIsRegular bool
	outputSizeKnown int64 // current known size of a regular output, for strunc
	lastWriteEnd    int64 // highest byte offset written to OFILE so far

	lastPTStatus ptport.Status // most recent non-OK pass-through status, for ExitCode
}

// New constructs an Engine ready to Run. count/skip/seek are the
// planner's resolved values (planner.Result), not the raw config.Params
// ones, since resume may have advanced skip/seek and reduced count.
func New(p *config.Params, in, out, out2 byteport.Port, gate *signalgate.Gate, st *stats.Stats, jr *journal.Journal, rep *report.Reporter, count int64, skip, seek uint64, outputIsRegular bool) *Engine {
	return &Engine{
		Params:          p,
		In:              in,
		Out:             out,
		Out2:            out2,
		Gate:            gate,
		Stats:           st,
		Journal:         jr,
		Reporter:        rep,
		ddCount:         count,
		skip:            skip,
		seek:            seek,
		outputIsRegular: outputIsRegular,
	}
}

// Run executes the copy loop until natural completion, a terminal
// error, or a fatal signal, returning the leave reason and the first
// irrecoverable error encountered (nil on clean completion).
func (e *Engine) Run() (LeaveReason, error) {
	e.Gate.MaskDuringIO(!e.Params.IntIO)
	defer e.Gate.MaskDuringIO(false)

	if e.ddCount == 0 {
		log.Debug("engine: dd_count=0, no reads or writes")
		e.terminate()
		return LeaveNone, nil
	}

	for {
		e.state.reset()
		e.planChunk()

		if reason := e.poll(); reason != LeaveNone {
			return reason, nil
		}

		if err := e.readPhase(); err != nil {
			e.terminate()
			return e.state.LeaveReason, err
		}

		if e.Out2 != nil {
			if err := e.writeSecondary(); err != nil {
				e.terminate()
				return LeaveOther, err
			}
		}

		if err := e.sparseSparingTrimPhase(); err != nil {
			e.terminate()
			return LeaveOther, err
		}

		if reason := e.poll(); reason != LeaveNone {
			return reason, nil
		}

		if err := e.writePhase(); err != nil {
			e.terminate()
			return e.state.LeaveReason, err
		}

		done, reason, err := e.postWriteBookkeeping()
		if err != nil {
			e.terminate()
			return reason, err
		}
		if done {
			e.terminate()
			return reason, nil
		}
	}
}

// ExitCode maps the leave reason Run returned onto the process exit
// code taxonomy of §6/§7. A pass-through status recorded along the way
// (protection, not-ready, invalid-op) takes priority over the coarser
// LeaveReason buckets, since it carries the more specific code.
func (e *Engine) ExitCode(reason LeaveReason) xcode.Code {
	if e.lastPTStatus != ptport.StatusOK {
		if code := e.lastPTStatus.ToExitCode(); code != xcode.Other {
			return code
		}
	}
	switch reason {
	case LeaveNone, LeaveTapeShortRead:
		return xcode.Success
	case LeaveMediumHard:
		return xcode.MediumHard
	case LeaveFileError:
		return xcode.FileErr
	default:
		return xcode.Other
	}
}

// poll implements §4.1's contract for the pre-read/pre-write
// suspension points. It returns a non-LeaveNone reason only when a
// fatal signal is pending (the caller must stop the loop); info
// signals are handled here and never interrupt the loop.
func (e *Engine) poll() LeaveReason {
	if n := e.Gate.PendingInfoCount(); n > 0 && e.Reporter != nil {
		e.Reporter.Progress(e.Stats.Snapshot(), time.Since(e.Gate.StartTime()))
	}
	sig := e.Gate.Pending()
	if sig == nil {
		return LeaveNone
	}
	if e.Reporter != nil {
		cause := "Interrupted by signal"
		if e.outputIsRegular && !e.Params.OFlags.PreAlloc {
			cause += "; re-run with oflag=resume to continue"
		}
		e.Reporter.Final(e.Stats.Snapshot(), time.Since(e.Gate.StartTime()), cause)
	}
	e.Gate.Reraise(sig)
	return LeaveOther
}

// planChunk implements §4.7.1.
func (e *Engine) planChunk() {
	icbpt := e.Params.BPT
	if e.ddCount >= 0 && e.ddCount < icbpt {
		icbpt = e.ddCount
	}
	// dd_count < 0 means "unknown, run to EOF" (planner.Plan's -1
	// convention, typically a fifo input but not exclusively); the
	// chunk is simply planned at the full bpt size and read/write
	// phases discover the real extent via EOF (§4.7.1).
	e.state.ICBpt = icbpt

	ibs := int64(e.Params.IBS)
	obs := int64(e.Params.OBS)
	totalBytes := icbpt * ibs
	e.state.OCBpt = totalBytes / obs
	e.state.PartialWriteBytes = int(totalBytes % obs)

	if e.zeros == nil || int64(len(e.zeros)) < e.Params.BPT*ibs {
		e.zeros = make([]byte, e.Params.BPT*ibs)
	}
}
