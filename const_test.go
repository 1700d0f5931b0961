package bass

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControllerSyncTimeout(t *testing.T) {
	tests := []struct {
		name     string
		interval uint16
		ratio    int
		want     uint16
	}{
		{"100ms interval", 0x0050, 20, 0x00C8},
		{"clamped low", 0x0006, 1, SyncTimeoutMin},
		{"clamped high", 0xFFFE, 20, SyncTimeoutMax},
		{"unknown interval", PAIntervalUnknown, 20, SyncTimeoutMax},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ControllerSyncTimeout(tc.interval, tc.ratio))
		})
	}
}

func TestSyncTimeout(t *testing.T) {
	assert.Equal(t, uint32(1600), SyncTimeout(0x0050, 20))
	assert.Equal(t, uint32(0xFFFF)*20, SyncTimeout(0xFFFF, 20))
}

func TestWatchdogTimeout(t *testing.T) {
	assert.Equal(t, 20*time.Second, WatchdogTimeout(0x00C8))
	assert.True(t, WatchdogTimeout(SyncTimeoutMin) > time.Duration(SyncTimeoutMin)*10*time.Millisecond)
}
