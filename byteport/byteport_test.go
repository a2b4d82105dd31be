package byteport

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdd/ddpt/stats"
)

func tempFileWithContent(t *testing.T, content []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "byteport")
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	return f
}

func TestRegularPortReadWriteRoundTrip(t *testing.T) {
	content := []byte("abcdefgh")
	f := tempFileWithContent(t, content)
	defer f.Close()

	p := NewRegularPort(f, VariantRegular, stats.New())
	buf := make([]byte, 4)
	n, eof, err := p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, eof)
	assert.Equal(t, []byte("abcd"), buf)

	n, eof, err = p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, eof)
	assert.Equal(t, []byte("efgh"), buf)

	n, eof, err = p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, eof)
}

func TestRegularPortSeekElidesRedundantSyscall(t *testing.T) {
	f := tempFileWithContent(t, []byte("0123456789"))
	defer f.Close()

	p := NewRegularPort(f, VariantRegular, stats.New())
	require.NoError(t, p.SeekTo(4))
	buf := make([]byte, 2)
	n, _, err := p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("45"), buf)

	// Same offset the port already believes it's at: should elide the
	// seek and continue reading at the kernel's actual position (6),
	// not rewind to 4.
	require.NoError(t, p.SeekTo(6))
	n, _, err = p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("67"), buf)
}

func TestDevNullPortRejectsReadsAndDiscardsWrites(t *testing.T) {
	p := NewDevNullPort()
	n, err := p.WriteChunk([]byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, _, err = p.ReadChunk(make([]byte, 4))
	assert.ErrorIs(t, err, ErrReadNotPermitted)
}

func TestFifoPortShortReadIsNotEOF(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	p := NewFifoPort(r, stats.New())
	go func() {
		w.Write([]byte("ab"))
		w.Close()
	}()

	buf := make([]byte, 8)
	n, eof, err := p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, eof, "a short fifo read is not EOF")

	n, eof, err = p.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, eof)
}

func TestFifoPortGathersAcrossUndersizedRequests(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	p := NewFifoPort(r, stats.New())
	go func() {
		w.Write([]byte("abcdef"))
		w.Close()
	}()

	// If the writer lands all six bytes before the first ReadChunk, the
	// gather buffer holds more than each call asks for; either way the
	// loop must collect all six bytes in order.
	var got []byte
	buf := make([]byte, 2)
	for len(got) < 6 {
		n, eof, err := p.ReadChunk(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		if eof {
			break
		}
	}
	assert.Equal(t, []byte("abcdef"), got)
}

func TestReadSummarizerFlushesOnLengthChange(t *testing.T) {
	var logged []string
	_ = logged // kept for readability; logrus output isn't captured here

	s := NewReadSummarizer(512)
	s.Observe(512)
	s.Observe(512)
	s.Observe(256) // shorter: flushes the two full-length reads
	s.Observe(256)
	s.Flush() // flushes the two short reads

	// Behavior is exercised via logrus side effects; this test mainly
	// guards against panics and verifies the accounting resets.
	assert.Equal(t, 0, s.count)
}
