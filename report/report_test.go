package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRateSwitchesUnitsAtOneMBPerSec(t *testing.T) {
	assert.Equal(t, "500.0 KB/s", FormatRate(500*1000, time.Second))
	assert.Equal(t, "2.00 MB/s", FormatRate(2*1000*1000, time.Second))
}

func TestFormatElapsedMicrosecondResolution(t *testing.T) {
	assert.Equal(t, "1.500000 s", FormatElapsed(1500*time.Millisecond))
}

func TestFormatETAEmptyWhenRemainderTooSmall(t *testing.T) {
	assert.Equal(t, "", FormatETA(1024, 1000))
}

func TestFormatETAComputesHMS(t *testing.T) {
	eta := FormatETA(3600*1000*1000, 1000*1000) // 3600 MB remaining at 1 MB/s
	assert.Equal(t, "1:00:00", eta)
}
