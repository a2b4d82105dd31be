// Package journal implements the error-block journal (component 2):
// an append-only text log of LBAs or LBA ranges that failed to read,
// bracketed by start/stop timestamp markers. Never fatal to the copy.
package journal

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Journal is the append-only error-block log described in §4.2.
type Journal struct {
	f    *os.File
	path string
}

// Open truncates-for-append the journal file and writes a start marker.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &Journal{f: f, path: path}
	j.writeLine(fmt.Sprintf("# start: %s", time.Now().Format(time.RFC3339)))
	return j, nil
}

func (j *Journal) writeLine(s string) {
	if _, err := fmt.Fprintln(j.f, s); err != nil {
		log.Warnf("journal: write to %s failed: %v", j.path, err)
	}
}

// Record appends a single failed LBA as a hex line: 0x%lx.
func (j *Journal) Record(lba uint64) {
	j.writeLine(fmt.Sprintf("0x%x", lba))
}

// RecordRange appends a failed LBA range as lba_lo-lba_hi, both hex.
func (j *Journal) RecordRange(lo, hi uint64) {
	j.writeLine(fmt.Sprintf("0x%x-0x%x", lo, hi))
}

// Close writes the stop marker and closes the underlying file. Errors
// here are logged, never returned as fatal — a broken journal must
// never abort the copy (§4.2 "Never fatal to the copy").
func (j *Journal) Close() {
	j.writeLine(fmt.Sprintf("# stop: %s", time.Now().Format(time.RFC3339)))
	if err := j.f.Close(); err != nil {
		log.Warnf("journal: close %s failed: %v", j.path, err)
	}
}
