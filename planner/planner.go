// Package planner implements the count planner (component 6): given
// input/output capacities, skip/seek, resume state, and an optional
// user-supplied count, it produces the final block count the copy
// engine will run, aligned so that (ibs*bpt) mod obs == 0 (§4.6).
package planner

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/blockdd/ddpt/config"
)

// Geometry describes one side's known capacity in its own block units.
// Known is false when the side's size cannot be determined (a fifo, or
// a pass-through device whose READ CAPACITY failed and was tolerated).
type Geometry struct {
	Known  bool
	Blocks uint64
}

// OutputFile carries the extra byte-granularity size information only
// a regular output file can supply, needed for the resume calculation
// (§4.6 step 2) which operates in bytes, not blocks.
type OutputFile struct {
	IsRegular bool
	SizeKnown bool
	SizeBytes int64
}

// Result is the planner's output: the final parameters the engine
// should run with. AlreadyDone is set when a resume computation found
// the output already complete (§4.6 step 2, "copy complete").
type Result struct {
	Count       int64
	Skip        uint64
	Seek        uint64
	AlreadyDone bool
}

// Plan runs the algorithm of §4.6 against the already-validated
// Params (block-size alignment was checked once at parse time in
// config.ParseArgs and is checked again here as step 3; bpt itself
// is never changed by the planner).
func Plan(p *config.Params, in, out Geometry, outFile OutputFile) (*Result, error) {
	r := &Result{Count: p.Count, Skip: p.Skip, Seek: p.Seek}

	if !p.CountGiven {
		count, err := deriveCount(p, in, out, outFile)
		if err != nil {
			return nil, err
		}
		r.Count = count
		log.Debugf("planner: derived count=%d (skip=%d seek=%d)", r.Count, r.Skip, r.Seek)
	}

	if p.OFlags.Resume && outFile.IsRegular && outFile.SizeKnown {
		already := alignedDown(outputAvailableInputBlocks(p, outFile), p.BPT)
		if already >= r.Count && r.Count >= 0 {
			log.Infof("planner: resume found copy already complete (%d blocks)", already)
			r.AlreadyDone = true
			return r, nil
		}
		r.Skip += uint64(already)
		r.Seek += uint64(already)
		if r.Count >= 0 {
			r.Count -= already
		}
		log.Debugf("planner: resume advanced skip/seek by %d blocks", already)
	}

	if (int64(p.IBS)*p.BPT)%int64(p.OBS) != 0 {
		return nil, fmt.Errorf("planner: (ibs*bpt) mod obs must be 0, got ibs=%d bpt=%d obs=%d", p.IBS, p.BPT, p.OBS)
	}

	if p.SkipGiven && p.SeekGiven {
		if p.IBS == p.OBS {
			if r.Skip != r.Seek {
				return nil, fmt.Errorf("planner: skip (%d) and seek (%d) must match when ibs==obs", r.Skip, r.Seek)
			}
		} else if (r.Skip*uint64(p.IBS))%uint64(p.OBS) != 0 {
			return nil, fmt.Errorf("planner: (skip*ibs) mod obs must be 0, got skip=%d ibs=%d obs=%d", r.Skip, p.IBS, p.OBS)
		}
	}

	return r, nil
}

func deriveCount(p *config.Params, in, out Geometry, outFile OutputFile) (int64, error) {
	haveIn := in.Known
	haveOut := out.Known || (outFile.IsRegular && outFile.SizeKnown)

	if !haveIn && !haveOut {
		// Neither side has a known size (fifo-to-fifo, say): run until
		// EOF. -1 is the planner's own "unknown, run to EOF" spelling,
		// matching config.Params' dd_count=-1 convention.
		return -1, nil
	}

	var inBlocks int64 = -1
	if haveIn {
		if p.Skip > in.Blocks {
			return 0, fmt.Errorf("planner: skip %d exceeds input size of %d blocks", p.Skip, in.Blocks)
		}
		inBlocks = int64(in.Blocks - p.Skip)
	}

	var outBlocksInInputUnits int64 = -1
	if outFile.IsRegular && outFile.SizeKnown {
		outBlocksInInputUnits = outputAvailableInputBlocks(p, outFile)
	} else if out.Known {
		if p.Seek > out.Blocks {
			return 0, fmt.Errorf("planner: seek %d exceeds output size of %d blocks", p.Seek, out.Blocks)
		}
		availBytes := int64(out.Blocks-p.Seek) * int64(p.OBS)
		outBlocksInInputUnits = availBytes / int64(p.IBS)
	}

	switch {
	case inBlocks >= 0 && outBlocksInInputUnits >= 0:
		if outBlocksInInputUnits < inBlocks {
			return outBlocksInInputUnits, nil
		}
		return inBlocks, nil
	case inBlocks >= 0:
		return inBlocks, nil
	default:
		return outBlocksInInputUnits, nil
	}
}

// outputAvailableInputBlocks converts the regular output file's
// remaining byte capacity (after seek*obs) into input-block units,
// per §4.6 step 1's "output side is a regular file" case and
// step 2's resume "already" calculation — both divide by ibs.
func outputAvailableInputBlocks(p *config.Params, outFile OutputFile) int64 {
	avail := outFile.SizeBytes - int64(p.Seek)*int64(p.OBS)
	if avail < 0 {
		avail = 0
	}
	return avail / int64(p.IBS)
}

func alignedDown(n, multiple int64) int64 {
	if multiple <= 0 {
		return n
	}
	return (n / multiple) * multiple
}
