package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsBasic(t *testing.T) {
	p, err := ParseArgs([]string{"if=A", "of=B", "bs=512", "count=8"})
	require.NoError(t, err)
	assert.Equal(t, "A", p.IFile)
	assert.Equal(t, "B", p.OFile)
	assert.Equal(t, 512, p.IBS)
	assert.Equal(t, 512, p.OBS)
	assert.EqualValues(t, 8, p.Count)
	assert.True(t, p.CountGiven)
}

func TestParseArgsBPTAndOBPC(t *testing.T) {
	p, err := ParseArgs([]string{"if=A", "of=B", "ibs=512", "obs=1024", "bpt=4,2"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, p.BPT)
	assert.EqualValues(t, 2, p.OBPC)
	assert.True(t, p.BPTGiven)
}

func TestParseArgsRejectsMisalignedBlockSizes(t *testing.T) {
	_, err := ParseArgs([]string{"if=A", "of=B", "ibs=512", "obs=1024", "bpt=1"})
	require.Error(t, err)
}

func TestParseArgsFlagsAndConv(t *testing.T) {
	p, err := ParseArgs([]string{
		"if=A", "of=B", "bs=512",
		"oflag=sparse,resume",
		"iflag=coe",
		"conv=sparse,fsync",
	})
	require.NoError(t, err)
	assert.True(t, p.OFlags.Resume)
	assert.True(t, p.IFlags.Coe)
	assert.True(t, p.OFlags.FSync)
	assert.Equal(t, 2, p.OFlags.Sparse) // oflag=sparse once, conv=sparse once
}

func TestParseArgsRequiresIfAndOf(t *testing.T) {
	_, err := ParseArgs([]string{"bs=512"})
	require.Error(t, err)
}

func TestParseArgsUnknownFlagRejected(t *testing.T) {
	_, err := ParseArgs([]string{"if=A", "of=B", "oflag=bogus"})
	require.Error(t, err)
}

func TestParseArgsProtect(t *testing.T) {
	p, err := ParseArgs([]string{"if=A", "of=B", "protect=3,5"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.RdProtect)
	assert.Equal(t, 5, p.WrProtect)
}
