// Package ptport declares the pass-through port: the abstract interface
// the copy engine consumes for SCSI pass-through I/O (component 4).
// Constructing the actual SCSI CDBs (READ/WRITE/WRITE
// SAME/SYNCHRONIZE CACHE/READ CAPACITY) is explicitly out of scope per
// §1 — this package only names the contract.
package ptport

import "github.com/blockdd/ddpt/internal/xcode"

// Side identifies which side of the copy a pass-through call targets.
type Side int

const (
	SideInput Side = iota
	SideOutput
)

// Status is the outcome of a pass-through command, beyond plain success.
type Status int

const (
	StatusOK Status = iota
	StatusUnitAttention
	StatusAbortedCommand
	StatusMediumHard
	StatusProtection
	StatusProtectionWithInfo
	StatusNotReady
	StatusInvalidOp
	StatusOther
)

// ToExitCode maps a terminal pass-through status onto the process exit
// code taxonomy of §6/§7. StatusUnitAttention and
// StatusAbortedCommand are transient statuses that Port.Read leaves to
// its caller to retry; they have no case here and map to xcode.Other.
func (s Status) ToExitCode() xcode.Code {
	switch s {
	case StatusMediumHard:
		return xcode.MediumHard
	case StatusProtection:
		return xcode.Protection
	case StatusProtectionWithInfo:
		return xcode.ProtectionWithInfo
	case StatusNotReady:
		return xcode.NotReady
	case StatusInvalidOp:
		return xcode.InvalidOp
	default:
		return xcode.Other
	}
}

// TransferTooLarge is returned by Read when a request exceeds the
// transport's maximum transfer size (§4.4 "returns -2").
var TransferTooLarge = Status(-2)

// Capacity is the result of a READ CAPACITY command.
type Capacity struct {
	NumBlocks uint64
	BlockSize int
	PIType    int
	PIExp     int
}

// Port is the abstract SCSI pass-through channel consumed by the copy
// engine. Implementations own the underlying device handle and any
// reusable per-side command object; Close releases both.
type Port interface {
	// ReadCapacity queries device geometry and protection-information
	// layout for the given side.
	ReadCapacity(side Side) (Capacity, error)

	// Read issues a READ of nblocks blocks starting at lba and returns
	// the number of blocks actually transferred. On unit-attention or
	// aborted-command status the caller is expected to retry up to the
	// configured retry budget; on medium error blocksRead reflects how
	// far the command progressed before failing.
	Read(side Side, buf []byte, nblocks int, lba uint64) (blocksRead int, status Status, err error)

	// Write issues a WRITE of nblocks blocks from buf at lba.
	Write(buf []byte, nblocks int, lba uint64) (status Status, err error)

	// WriteSame issues a WRITE SAME (used for UNMAP/TRIM) of nblocks
	// blocks at lba, all equal to the first block of buf.
	WriteSame(buf []byte, blockSize int, nblocks int, lba uint64) error

	// SyncCache issues a SYNCHRONIZE CACHE for the given side.
	SyncCache(side Side) error

	// Close destroys any per-side reusable command object and releases
	// the device handle.
	Close() error
}
