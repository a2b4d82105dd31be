package engine

import (
	"bytes"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdd/ddpt/byteport"
	"github.com/blockdd/ddpt/config"
	"github.com/blockdd/ddpt/internal/xcode"
	"github.com/blockdd/ddpt/ptport"
	"github.com/blockdd/ddpt/signalgate"
	"github.com/blockdd/ddpt/stats"
)

func openTempWith(t *testing.T, content []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "engine-in")
	require.NoError(t, err)
	if content != nil {
		_, err = f.Write(content)
		require.NoError(t, err)
		_, err = f.Seek(0, 0)
		require.NoError(t, err)
	}
	return f
}

func newTestEngine(t *testing.T, p *config.Params, in, out byteport.Port, outRegular bool) *Engine {
	t.Helper()
	gate := signalgate.New()
	t.Cleanup(gate.Close)
	return New(p, in, out, nil, gate, stats.New(), nil, nil, p.Count, p.Skip, p.Seek, outRegular)
}

// Seed scenario 1 (§8): bs=512 count=8, A is 4096 bytes of 0xAB.
func TestRunBasicFullCopy(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 4096)
	inFile := openTempWith(t, content)
	defer inFile.Close()
	outFile := openTempWith(t, nil)
	defer outFile.Close()

	p := config.Default()
	p.IBS, p.OBS = 512, 512
	p.Count, p.CountGiven = 8, true

	st := stats.New()
	in := byteport.NewRegularPort(inFile, byteport.VariantRegular, st)
	out := byteport.NewRegularPort(outFile, byteport.VariantRegular, st)

	gate := signalgate.New()
	defer gate.Close()
	e := New(p, in, out, nil, gate, st, nil, nil, p.Count, 0, 0, true)

	reason, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, LeaveNone, reason)
	assert.Equal(t, int64(8), st.InFull)
	assert.Equal(t, int64(8), st.OutFull)

	got, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// Seed scenario 3 (§8): bs=512 oflag=sparse count=4, alternating
// 0xFF/0x00 512-byte blocks; expect out_full=2, out_sparse=2, holes at
// blocks 1 and 3.
func TestRunSparseOutputSkipsZeroChunks(t *testing.T) {
	block := func(b byte) []byte { return bytes.Repeat([]byte{b}, 512) }
	content := append(append(append(block(0xFF), block(0x00)...), block(0xFF)...), block(0x00)...)
	inFile := openTempWith(t, content)
	defer inFile.Close()
	outFile := openTempWith(t, nil)
	defer outFile.Close()

	p := config.Default()
	p.IBS, p.OBS = 512, 512
	p.Count, p.CountGiven = 4, true
	p.OFlags.Sparse = 1

	st := stats.New()
	in := byteport.NewRegularPort(inFile, byteport.VariantRegular, st)
	out := byteport.NewRegularPort(outFile, byteport.VariantRegular, st)
	e := newTestEngine(t, p, in, out, true)

	reason, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, LeaveNone, reason)
	assert.Equal(t, int64(2), st.OutFull)
	assert.Equal(t, int64(2), st.OutSparse)

	got, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	require.Len(t, got, 2048)
	assert.Equal(t, block(0xFF), got[0:512])
	assert.Equal(t, make([]byte, 512), got[512:1024])
	assert.Equal(t, block(0xFF), got[1024:1536])
	assert.Equal(t, make([]byte, 512), got[1536:2048])
}

// TestRunSparseOutputDoesNotClobberLastRealBlock guards against the
// length-pin writing zeros over a block the copy just wrote for real:
// bs=512 oflag=sparse count=3, A = FF,00,FF. The last block (index 2)
// is real data, not a hole, so terminate() must not pin over it.
func TestRunSparseOutputDoesNotClobberLastRealBlock(t *testing.T) {
	block := func(b byte) []byte { return bytes.Repeat([]byte{b}, 512) }
	content := append(append(block(0xFF), block(0x00)...), block(0xFF)...)
	inFile := openTempWith(t, content)
	defer inFile.Close()
	outFile := openTempWith(t, nil)
	defer outFile.Close()

	p := config.Default()
	p.IBS, p.OBS = 512, 512
	p.Count, p.CountGiven = 3, true
	p.OFlags.Sparse = 1

	st := stats.New()
	in := byteport.NewRegularPort(inFile, byteport.VariantRegular, st)
	out := byteport.NewRegularPort(outFile, byteport.VariantRegular, st)
	e := newTestEngine(t, p, in, out, true)

	reason, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, LeaveNone, reason)

	got, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	require.Len(t, got, 1536)
	assert.Equal(t, block(0xFF), got[0:512])
	assert.Equal(t, make([]byte, 512), got[512:1024])
	assert.Equal(t, block(0xFF), got[1024:1536], "last block was real data, not a hole, and must survive terminate()'s length-pin")
}

// faultyPort simulates a block device whose read at one fixed offset
// always returns EIO, used for seed scenario 4 (coe fallback).
type faultyPort struct {
	data     []byte
	pos      int64
	badBytes map[int64]bool // offsets (byte-aligned to ibs) that always EIO
	ibs      int
}

func (p *faultyPort) Variant() byteport.Variant { return byteport.VariantRegular }

func (p *faultyPort) SeekTo(offset int64) error {
	p.pos = offset
	return nil
}

func (p *faultyPort) ReadChunk(buf []byte) (int, bool, error) {
	end := p.pos + int64(len(buf))
	for off := range p.badBytes {
		if off >= p.pos && off < end {
			return 0, false, syscall.EIO
		}
	}
	n := copy(buf, p.data[p.pos:])
	p.pos += int64(n)
	return n, p.pos >= int64(len(p.data)), nil
}

func (p *faultyPort) WriteChunk(buf []byte) (int, error) { return len(buf), nil }
func (p *faultyPort) Close() error                        { return nil }

// Seed scenario 4 (§8): bs=512 iflag=coe count=4, EIO at byte
// offset 1024 (block 2). Expect in_full=3, in_partial=1,
// unrecovered_errs=1, lowest==highest==2, B[1024:1536] all zeros.
func TestRunCoeFallbackZeroFillsUnrecoverableBlock(t *testing.T) {
	content := bytes.Repeat([]byte{0xCD}, 2048)
	in := &faultyPort{data: content, badBytes: map[int64]bool{1024: true}, ibs: 512}
	outFile := openTempWith(t, nil)
	defer outFile.Close()

	p := config.Default()
	p.IBS, p.OBS = 512, 512
	p.Count, p.CountGiven = 4, true
	p.IFlags.Coe = true

	st := stats.New()
	out := byteport.NewRegularPort(outFile, byteport.VariantRegular, st)
	gate := signalgate.New()
	defer gate.Close()
	e := New(p, in, out, nil, gate, st, nil, nil, p.Count, 0, 0, true)

	reason, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, LeaveNone, reason)
	assert.Equal(t, int64(3), st.InFull)
	assert.Equal(t, int64(1), st.InPartial)
	assert.Equal(t, int64(1), st.UnrecoveredReadErrs)
	assert.Equal(t, int64(2), st.Coe.LowestUnrecovered)
	assert.Equal(t, int64(2), st.Coe.HighestUnrecovered)

	got, err := os.ReadFile(outFile.Name())
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 512), got[1024:1536])
}

func TestRunZeroCountDoesNothing(t *testing.T) {
	inFile := openTempWith(t, []byte("data"))
	defer inFile.Close()
	outFile := openTempWith(t, nil)
	defer outFile.Close()

	p := config.Default()
	p.Count, p.CountGiven = 0, true

	st := stats.New()
	in := byteport.NewRegularPort(inFile, byteport.VariantRegular, st)
	out := byteport.NewRegularPort(outFile, byteport.VariantRegular, st)
	e := newTestEngine(t, p, in, out, true)

	reason, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, LeaveNone, reason)
	assert.Equal(t, int64(0), st.InFull)
	assert.Equal(t, int64(0), st.OutFull)
}

func TestExitCodePrefersPassThroughStatusOverLeaveReason(t *testing.T) {
	p := config.Default()
	gate := signalgate.New()
	defer gate.Close()
	e := New(p, nil, nil, nil, gate, stats.New(), nil, nil, 0, 0, 0, false)

	assert.Equal(t, xcode.Success, e.ExitCode(LeaveNone))
	assert.Equal(t, xcode.FileErr, e.ExitCode(LeaveFileError))
	assert.Equal(t, xcode.MediumHard, e.ExitCode(LeaveMediumHard))

	e.lastPTStatus = ptport.StatusNotReady
	assert.Equal(t, xcode.NotReady, e.ExitCode(LeaveFileError), "a recorded pass-through status should win over the coarser leave reason")
}
