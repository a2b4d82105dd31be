package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdd/ddpt/config"
)

func baseParams() *config.Params {
	p := config.Default()
	p.IFile = "A"
	p.OFile = "B"
	return p
}

func TestDeriveCountSmallerOfTwoKnownSides(t *testing.T) {
	p := baseParams()
	in := Geometry{Known: true, Blocks: 100}
	out := Geometry{Known: true, Blocks: 40}
	r, err := Plan(p, in, out, OutputFile{})
	require.NoError(t, err)
	assert.Equal(t, int64(40), r.Count)
}

func TestDeriveCountSubtractsSkipAndSeek(t *testing.T) {
	p := baseParams()
	p.Skip = 10
	p.Seek = 5
	in := Geometry{Known: true, Blocks: 100}
	out := Geometry{Known: true, Blocks: 100}
	r, err := Plan(p, in, out, OutputFile{})
	require.NoError(t, err)
	assert.Equal(t, int64(90), r.Count) // limited by input side: 100-10
}

func TestDeriveCountUnknownBothSidesRunsToEOF(t *testing.T) {
	p := baseParams()
	r, err := Plan(p, Geometry{}, Geometry{}, OutputFile{})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), r.Count)
}

func TestResumeAlreadyCompleteExitsSuccess(t *testing.T) {
	p := baseParams()
	p.OFlags.Resume = true
	p.BPT = 2
	p.Count = 8
	p.CountGiven = true
	in := Geometry{Known: true, Blocks: 100}
	out := OutputFile{IsRegular: true, SizeKnown: true, SizeBytes: 8 * 512}
	r, err := Plan(p, in, Geometry{}, out)
	require.NoError(t, err)
	assert.True(t, r.AlreadyDone)
}

func TestResumeAdvancesSkipAndSeekAlignedDownToBpt(t *testing.T) {
	p := baseParams()
	p.OFlags.Resume = true
	p.BPT = 2
	p.Count = 8
	p.CountGiven = true
	out := OutputFile{IsRegular: true, SizeKnown: true, SizeBytes: 5 * 512} // 5 blocks done, aligns down to 4
	r, err := Plan(p, Geometry{Known: true, Blocks: 100}, Geometry{}, out)
	require.NoError(t, err)
	assert.False(t, r.AlreadyDone)
	assert.Equal(t, uint64(4), r.Skip)
	assert.Equal(t, uint64(4), r.Seek)
	assert.Equal(t, int64(4), r.Count)
}

func TestPlanRejectsMisalignedBlockSizes(t *testing.T) {
	p := baseParams()
	p.IBS = 512
	p.OBS = 1024
	p.BPT = 1 // (512*1) mod 1024 != 0
	_, err := Plan(p, Geometry{}, Geometry{}, OutputFile{})
	assert.Error(t, err)
}

func TestPlanRejectsMismatchedSkipSeekWhenBlockSizesEqual(t *testing.T) {
	p := baseParams()
	p.Skip, p.SkipGiven = 5, true
	p.Seek, p.SeekGiven = 7, true
	_, err := Plan(p, Geometry{}, Geometry{}, OutputFile{})
	assert.Error(t, err)
}

func TestPlanAcceptsAlignedSkipSeekWhenBlockSizesDiffer(t *testing.T) {
	p := baseParams()
	p.IBS = 512
	p.OBS = 256
	p.Skip, p.SkipGiven = 2, true // skip*ibs = 1024, mod obs(256) == 0
	p.Seek, p.SeekGiven = 1, true
	_, err := Plan(p, Geometry{}, Geometry{}, OutputFile{})
	assert.NoError(t, err)
}
