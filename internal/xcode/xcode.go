// Package xcode defines the process exit-code taxonomy used throughout
// the copier: one small numeric type with a lookup table of
// explanations (see DESIGN.md for the design this follows).
package xcode

import log "github.com/sirupsen/logrus"

// Code is a process exit code / abort reason.
type Code int

const (
	Success            Code = 0
	Syntax             Code = 1
	FileErr            Code = 2
	FlockErr           Code = 3
	MediumHard         Code = 4
	Protection         Code = 5
	ProtectionWithInfo Code = 6
	UnitAttention      Code = 7
	AbortedCommand     Code = 8
	NotReady           Code = 9
	InvalidOp          Code = 10
	Other              Code = 11
)

var explanations = map[Code]string{
	Success:            "no error",
	Syntax:             "syntax error in command line arguments",
	FileErr:            "error opening, stating, seeking or truncating a file",
	FlockErr:           "could not acquire advisory lock on a file",
	MediumHard:         "medium error occurred",
	Protection:         "protection information error occurred",
	ProtectionWithInfo: "protection information error occurred, with further information",
	UnitAttention:      "unit attention condition on device",
	AbortedCommand:     "command aborted by device",
	NotReady:           "device not ready",
	InvalidOp:          "invalid SCSI operation code",
	Other:              "unclassified error",
}

// Error implements the error interface so a Code can be returned and
// compared directly as an error value.
func (c Code) Error() string {
	msg, ok := explanations[c]
	if ok {
		return msg
	}
	log.Errorf("unknown exit code %d", int(c))
	return explanations[Other]
}

// Cause returns the one-line "Early termination, ..." diagnostic shown
// on abnormal exit, per §7.
func (c Code) Cause() string {
	switch c {
	case MediumHard:
		return "Early termination, medium error occurred"
	case Protection, ProtectionWithInfo:
		return "Early termination, protection information error occurred"
	case NotReady:
		return "Early termination, device not ready"
	case InvalidOp:
		return "Early termination, invalid operation code"
	case FileErr:
		return "Early termination, file error occurred"
	case Success:
		return ""
	default:
		return "Early termination, " + c.Error()
	}
}
