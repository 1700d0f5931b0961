package bass

import "time"

const (
	// PASyncSkip is the number of periodic advertising events the
	// controller may skip once synced.
	PASyncSkip = 5

	// PASyncIntervalToTimeoutRatio scales a PA interval into a sync timeout.
	PASyncIntervalToTimeoutRatio = 20

	// WatchdogMultiplier scales the controller sync timeout into the local
	// watchdog so the controller always gives up first.
	WatchdogMultiplier = 10

	// BroadcastCodeSize is the length of a broadcast code in bytes.
	BroadcastCodeSize = 16

	// MaxSubgroups bounds the subgroups of a single receive state.
	MaxSubgroups = 4

	// DefaultRecvStateCount is the receive state table capacity used when
	// none is configured.
	DefaultRecvStateCount = 3

	// MaxBroadcastID is the largest 24-bit Broadcast_ID.
	MaxBroadcastID = 0xFFFFFF

	// MaxSID is the largest Advertising_SID.
	MaxSID = 0x0F
)

// PAIntervalUnknown is written by a client that does not know the PA interval.
const PAIntervalUnknown uint16 = 0xFFFF

// BISSyncNoPref asks the delegator to sync to any BIS of a subgroup.
const BISSyncNoPref uint32 = 0xFFFFFFFF

// BISSyncFailed is reported in a BIS sync state when BIG sync failed.
const BISSyncFailed uint32 = 0xFFFFFFFF

// Sync_Timeout bounds of LE Periodic Advertising Create Sync, N * 10 ms.
const (
	SyncTimeoutMin uint16 = 0x000A
	SyncTimeoutMax uint16 = 0x4000
)

// SyncTimeout returns the sync timeout for a PA interval in the interval's
// own unit (1.25 ms).
func SyncTimeout(paInterval uint16, ratio int) uint32 {
	return uint32(paInterval) * uint32(ratio)
}

// ControllerSyncTimeout converts a PA interval into the Sync_Timeout field
// of the controller (N * 10 ms), clamped to the range the controller accepts.
func ControllerSyncTimeout(paInterval uint16, ratio int) uint16 {
	if paInterval == PAIntervalUnknown {
		return SyncTimeoutMax
	}

	// 1.25 ms units to 10 ms units
	to := SyncTimeout(paInterval, ratio) / 8

	switch {
	case to < uint32(SyncTimeoutMin):
		return SyncTimeoutMin
	case to > uint32(SyncTimeoutMax):
		return SyncTimeoutMax
	}
	return uint16(to)
}

// WatchdogTimeout is the local backstop for a controller sync timeout.
func WatchdogTimeout(syncTimeout uint16) time.Duration {
	return time.Duration(syncTimeout) * 10 * time.Millisecond * WatchdogMultiplier
}
