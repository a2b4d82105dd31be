package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blockdd/ddpt/internal/xcode"
)

// ParseArgs parses the dd-style `key=value` argument vector described in
// §6 into a Params. Unknown keys or malformed values are reported
// as xcode.Syntax errors before anything is opened.
func ParseArgs(args []string) (*Params, error) {
	p := Default()
	seenConvSync := false

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: argument %q is not key=value", xcode.Syntax, arg)
		}
		var err error
		switch key {
		case "if":
			p.IFile = value
		case "of":
			p.OFile = value
		case "of2":
			p.OFile2 = value
		case "bs":
			err = setBothBlockSizes(p, value)
		case "ibs":
			p.IBS, err = atoiPositive(value)
		case "obs":
			p.OBS, err = atoiPositive(value)
		case "bpt":
			err = parseBPT(p, value)
		case "cdbsz":
			err = parseCDBSize(p, value)
		case "coe":
			p.IFlags.Coe, err = parseBool1(value)
		case "coe_limit":
			p.CoeLimit, err = atoiNonNeg(value)
		case "retries":
			p.Retries, err = atoiNonNeg(value)
		case "count":
			err = parseCount(p, value)
		case "skip", "iseek":
			p.Skip, err = atou64(value)
			p.SkipGiven = err == nil
		case "seek", "oseek":
			p.Seek, err = atou64(value)
			p.SeekGiven = err == nil
		case "protect":
			err = parseProtect(p, value)
		case "intio":
			p.IntIO, err = parseBool1(value)
		case "status":
			if value == "noxfer" {
				p.StatusNoXfer = true
			} else {
				err = fmt.Errorf("unsupported status=%s", value)
			}
		case "verbose":
			p.Verbose, err = atoiAny(value)
		case "conv":
			err = applyConv(p, value, &seenConvSync)
		case "iflag":
			err = applyFlagList(&p.IFlags, value, SideInput)
		case "oflag":
			err = applyFlagList(&p.OFlags, value, SideOutput)
		default:
			err = fmt.Errorf("unknown argument key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", xcode.Syntax, arg, err)
		}
	}

	if p.IFile == "" {
		return nil, fmt.Errorf("%w: if= is required", xcode.Syntax)
	}
	if p.OFile == "" {
		return nil, fmt.Errorf("%w: of= is required", xcode.Syntax)
	}
	if p.IBS <= 0 || p.OBS <= 0 {
		return nil, fmt.Errorf("%w: ibs/obs must be >= 1", xcode.Syntax)
	}
	if p.BPT <= 0 {
		return nil, fmt.Errorf("%w: bpt must be >= 1", xcode.Syntax)
	}
	if (int64(p.IBS)*p.BPT)%int64(p.OBS) != 0 {
		return nil, fmt.Errorf("%w: (ibs*bpt) mod obs must be 0", xcode.Syntax)
	}
	if p.OFlags.PreAlloc || p.OFlags.Resume {
		// only meaningful against a regular file; validated later once
		// the file type is known (component out of scope here).
	}
	return p, nil
}

func setBothBlockSizes(p *Params, value string) error {
	n, err := atoiPositive(value)
	if err != nil {
		return err
	}
	p.IBS, p.OBS = n, n
	return nil
}

func parseBPT(p *Params, value string) error {
	bpt, obpc, _ := strings.Cut(value, ",")
	n, err := strconv.ParseInt(bpt, 10, 64)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid bpt %q", bpt)
	}
	p.BPT = n
	p.BPTGiven = true
	if obpc != "" {
		m, err := strconv.ParseInt(obpc, 10, 64)
		if err != nil || m < 0 {
			return fmt.Errorf("invalid obpc %q", obpc)
		}
		p.OBPC = m
	}
	return nil
}

func parseCDBSize(p *Params, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	switch n {
	case 6, 10, 12, 16, 32:
		p.CDBSize = n
		return nil
	default:
		return fmt.Errorf("cdbsz must be one of 6,10,12,16,32, got %d", n)
	}
}

func parseCount(p *Params, value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return err
	}
	p.Count = n
	p.CountGiven = n >= 0
	return nil
}

func parseProtect(p *Params, value string) error {
	rd, wr, hasWr := strings.Cut(value, ",")
	r, err := strconv.Atoi(rd)
	if err != nil || r < 0 || r > 7 {
		return fmt.Errorf("invalid rdprotect %q", rd)
	}
	p.RdProtect = r
	if hasWr {
		w, err := strconv.Atoi(wr)
		if err != nil || w < 0 || w > 7 {
			return fmt.Errorf("invalid wrprotect %q", wr)
		}
		p.WrProtect = w
	}
	return nil
}

func applyConv(p *Params, value string, seenConvSync *bool) error {
	for _, tok := range strings.Split(value, ",") {
		switch tok {
		case "fdatasync":
			p.OFlags.FDataSync = true
		case "fsync":
			p.OFlags.FSync = true
		case "noerror":
			p.IFlags.Coe = true
		case "notrunc":
			p.OFlags.Trunc = false
		case "null":
			p.OFlags.Null = true
		case "resume":
			p.OFlags.Resume = true
		case "sparing":
			p.OFlags.Sparing = true
		case "sparse":
			p.OFlags.Sparse++
		case "sync":
			*seenConvSync = true
			p.OFlags.Pad = true
		case "trunc":
			p.OFlags.Trunc = true
		default:
			return fmt.Errorf("unknown conv token %q", tok)
		}
	}
	return nil
}

func applyFlagList(f *IOFlags, value string, side Side) error {
	for _, tok := range strings.Split(value, ",") {
		if tok == "" {
			continue
		}
		if err := applyFlag(f, tok, side); err != nil {
			return err
		}
	}
	return nil
}

func applyFlag(f *IOFlags, tok string, side Side) error {
	switch tok {
	case "append":
		f.Append = true
	case "coe":
		f.Coe = true
	case "direct":
		f.Direct = true
	case "dpo":
		f.DPO = true
	case "errblk":
		f.ErrBlk = true
	case "excl":
		f.Excl = true
	case "fdatasync":
		f.FDataSync = true
	case "flock":
		f.Flock = true
	case "force":
		f.Force = true
	case "fsync":
		f.FSync = true
	case "fua":
		f.FUA = true
	case "fua_nv":
		f.FUANV = true
	case "ignoreew":
		f.IgnoreEW = true
	case "nocache":
		f.NoCache = true
	case "nofm":
		f.NoFM = true
	case "nopad":
		f.NoPad = true
	case "norcap":
		f.NoRCap = true
	case "nowrite":
		f.NoWrite = true
	case "null":
		f.Null = true
	case "pad":
		f.Pad = true
	case "pre-alloc":
		f.PreAlloc = true
	case "pt":
		f.PT = true
	case "rarc":
		f.RARC = true
	case "resume":
		f.Resume = true
	case "self":
		f.Self = true
	case "sparing":
		f.Sparing = true
	case "sparse":
		f.Sparse++
	case "ssync":
		f.SSync = true
	case "strunc":
		f.STrunc = true
	case "sync":
		f.Sync = true
	case "trim", "unmap":
		f.WSame16 = true
	case "trunc":
		f.Trunc = true
	default:
		return fmt.Errorf("unknown %s flag %q", side, tok)
	}
	return nil
}

func atoiPositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid positive integer %q", s)
	}
	return n, nil
}

func atoiNonNeg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid non-negative integer %q", s)
	}
	return n, nil
}

func atoiAny(s string) (int, error) {
	return strconv.Atoi(s)
}

func atou64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned integer %q", s)
	}
	return n, nil
}

func parseBool1(s string) (bool, error) {
	switch s {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
