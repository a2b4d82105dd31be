// Package report implements the throughput reporter (component 8):
// formats the statistics accumulator's contents and elapsed-time
// throughput on interrupt, on the info signal, and at process exit
// (§4.8).
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/blockdd/ddpt/stats"
)

// Reporter writes formatted progress and final summaries to Out
// (typically os.Stderr, matching where the original tool prints so it
// doesn't interleave with data piped through stdout).
type Reporter struct {
	Out       io.Writer
	BlockSize int // obs, used to convert record counts into bytes for throughput
}

func New(out io.Writer, blockSize int) *Reporter {
	return &Reporter{Out: out, BlockSize: blockSize}
}

// RecordsLine formats the dd-style "N+M records in/out" line.
func RecordsLine(label string, full, partial int64) string {
	return fmt.Sprintf("%d+%d records %s", full, partial, label)
}

// FormatElapsed renders a duration at microsecond resolution, e.g.
// "12.345678 s" (§4.8 "elapsed seconds at microsecond
// resolution").
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.6f s", d.Seconds())
}

// FormatRate renders a decimal (base-10) transfer rate in KB/s or
// MB/s, switching units at 1000 KB/s the way dd-family tools do.
func FormatRate(bytesTransferred int64, elapsed time.Duration) string {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-6
	}
	bytesPerSec := float64(bytesTransferred) / secs
	kbPerSec := bytesPerSec / 1000.0
	if kbPerSec < 1000.0 {
		return fmt.Sprintf("%.1f KB/s", kbPerSec)
	}
	return fmt.Sprintf("%.2f MB/s", kbPerSec/1000.0)
}

// FormatETA renders an h:mm:ss estimate for the remaining bytes at the
// current rate, or "" when the rate is zero or the remainder is too
// small to bother estimating (§4.8 "if the remaining work is
// large enough").
func FormatETA(remainingBytes int64, bytesPerSec float64) string {
	const minRemainingForEstimate = 1 << 20 // 1 MiB
	if remainingBytes < minRemainingForEstimate || bytesPerSec <= 0 {
		return ""
	}
	remainingSecs := float64(remainingBytes) / bytesPerSec
	total := int64(math.Round(remainingSecs))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Progress prints the running accumulator state, used on the
// info-signal path (§4.1 "print a progress report with
// throughput and continue").
func (r *Reporter) Progress(snap stats.Stats, elapsed time.Duration) {
	bytesOut := (snap.OutFull + snap.OutSparse) * int64(r.BlockSize)
	fmt.Fprintf(r.Out, "%s, %s\n", RecordsLine("out", snap.OutFull, snap.OutPartial), FormatElapsed(elapsed))
	fmt.Fprintf(r.Out, "%d bytes transferred in %s (%s)\n", bytesOut, FormatElapsed(elapsed), FormatRate(bytesOut, elapsed))
}

// Final prints the end-of-run summary: both records lines, the
// sparse/error counters a caller cares to surface, and — for abnormal
// exits — the one-line cause (§7 "prints the full stats block
// plus a one-line cause").
func (r *Reporter) Final(snap stats.Stats, elapsed time.Duration, cause string) {
	fmt.Fprintln(r.Out, RecordsLine("in", snap.InFull, snap.InPartial))
	fmt.Fprintln(r.Out, RecordsLine("out", snap.OutFull, snap.OutPartial))
	if snap.OutSparse > 0 {
		fmt.Fprintf(r.Out, "%d records sparse (not written)\n", snap.OutSparse)
	}
	if snap.UnrecoveredReadErrs > 0 {
		fmt.Fprintf(r.Out, "%d unrecovered read errors (lba 0x%x-0x%x)\n",
			snap.UnrecoveredReadErrs, snap.Coe.LowestUnrecovered, snap.Coe.HighestUnrecovered)
	}
	if snap.TrimErrs > 0 {
		fmt.Fprintf(r.Out, "%d trim errors\n", snap.TrimErrs)
	}
	bytesOut := (snap.OutFull + snap.OutSparse) * int64(r.BlockSize)
	fmt.Fprintf(r.Out, "%d bytes transferred in %s (%s)\n", bytesOut, FormatElapsed(elapsed), FormatRate(bytesOut, elapsed))
	if cause != "" {
		fmt.Fprintln(r.Out, cause)
	}
}
