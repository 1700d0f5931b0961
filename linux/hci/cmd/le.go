package cmd

// LE meta event mask bits, one per subevent code minus one [Vol 4, Part E, 7.8.1].
const (
	LEEventMaskDefault                      uint64 = 0x000000000000001F
	LEEventMaskExtendedAdvertisingReport    uint64 = 1 << 12
	LEEventMaskPeriodicSyncEstablished      uint64 = 1 << 13
	LEEventMaskPeriodicSyncLost             uint64 = 1 << 15
	LEEventMaskPeriodicSyncTransferReceived uint64 = 1 << 23
)

// LESetEventMask implements LE Set Event Mask (0x08|0x0001) [Vol 2, Part E, 7.8.1]
type LESetEventMask struct {
	LEEventMask uint64
}

func (c *LESetEventMask) String() string { return "LE Set Event Mask (0x08|0x0001)" }
func (c *LESetEventMask) OpCode() int { return LESetEventMaskOpCode }
func (c *LESetEventMask) Len() int { return 8 }
func (c *LESetEventMask) Marshal(b []byte) error { return marshal(c, c.Len(), b) }

// LESetExtendedScanParameters implements LE Set Extended Scan Parameters
// (0x08|0x0041) [Vol 4, Part E, 7.8.64] for the LE 1M PHY only.
type LESetExtendedScanParameters struct {
	OwnAddressType       uint8
	ScanningFilterPolicy uint8
	ScanningPHYs         uint8
	ScanType             uint8
	ScanInterval         uint16
	ScanWindow           uint16
}

func (c *LESetExtendedScanParameters) String() string {
	return "LE Set Extended Scan Parameters (0x08|0x0041)"
}
func (c *LESetExtendedScanParameters) OpCode() int { return LESetExtendedScanParametersOpCode }
func (c *LESetExtendedScanParameters) Len() int { return 8 }
func (c *LESetExtendedScanParameters) Marshal(b []byte) error { return marshal(c, c.Len(), b) }

// LESetExtendedScanEnable implements LE Set Extended Scan Enable
// (0x08|0x0042) [Vol 4, Part E, 7.8.65]
type LESetExtendedScanEnable struct {
	Enable           uint8
	FilterDuplicates uint8
	Duration         uint16
	Period           uint16
}

func (c *LESetExtendedScanEnable) String() string {
	return "LE Set Extended Scan Enable (0x08|0x0042)"
}
func (c *LESetExtendedScanEnable) OpCode() int { return LESetExtendedScanEnableOpCode }
func (c *LESetExtendedScanEnable) Len() int { return 6 }
func (c *LESetExtendedScanEnable) Marshal(b []byte) error { return marshal(c, c.Len(), b) }

// LEPeriodicAdvertisingCreateSync implements LE Periodic Advertising Create
// Sync (0x08|0x0044) [Vol 4, Part E, 7.8.67]. The controller answers with a
// command status; the outcome arrives as a sync established event.
type LEPeriodicAdvertisingCreateSync struct {
	Options            uint8
	AdvertisingSID     uint8
	AdvertiserAddrType uint8
	AdvertiserAddr     [6]byte
	Skip               uint16
	SyncTimeout        uint16
	SyncCTEType        uint8
}

func (c *LEPeriodicAdvertisingCreateSync) String() string {
	return "LE Periodic Advertising Create Sync (0x08|0x0044)"
}
func (c *LEPeriodicAdvertisingCreateSync) OpCode() int { return LEPeriodicAdvertisingCreateSyncOpCode }
func (c *LEPeriodicAdvertisingCreateSync) Len() int { return 14 }
func (c *LEPeriodicAdvertisingCreateSync) Marshal(b []byte) error {
	return marshal(c, c.Len(), b)
}

// LEPeriodicAdvertisingCreateSyncCancel implements LE Periodic Advertising
// Create Sync Cancel (0x08|0x0045) [Vol 4, Part E, 7.8.68]
type LEPeriodicAdvertisingCreateSyncCancel struct{}

func (c *LEPeriodicAdvertisingCreateSyncCancel) String() string {
	return "LE Periodic Advertising Create Sync Cancel (0x08|0x0045)"
}
func (c *LEPeriodicAdvertisingCreateSyncCancel) OpCode() int {
	return LEPeriodicAdvertisingCreateSyncCancelOpCode
}
func (c *LEPeriodicAdvertisingCreateSyncCancel) Len() int { return 0 }
func (c *LEPeriodicAdvertisingCreateSyncCancel) Marshal(b []byte) error { return nil }

// LEPeriodicAdvertisingTerminateSync implements LE Periodic Advertising
// Terminate Sync (0x08|0x0046) [Vol 4, Part E, 7.8.69]
type LEPeriodicAdvertisingTerminateSync struct {
	SyncHandle uint16
}

func (c *LEPeriodicAdvertisingTerminateSync) String() string {
	return "LE Periodic Advertising Terminate Sync (0x08|0x0046)"
}
func (c *LEPeriodicAdvertisingTerminateSync) OpCode() int {
	return LEPeriodicAdvertisingTerminateSyncOpCode
}
func (c *LEPeriodicAdvertisingTerminateSync) Len() int { return 2 }
func (c *LEPeriodicAdvertisingTerminateSync) Marshal(b []byte) error {
	return marshal(c, c.Len(), b)
}

// PAST modes [Vol 4, Part E, 7.8.91].
const (
	PASTModeOff                 uint8 = 0x00
	PASTModeNoReports           uint8 = 0x01
	PASTModeReports             uint8 = 0x02
	PASTModeReportsFilteredDups uint8 = 0x03
)

// LESetPeriodicAdvertisingSyncTransferParams implements LE Set Periodic
// Advertising Sync Transfer Parameters (0x08|0x005C) [Vol 4, Part E, 7.8.91]
type LESetPeriodicAdvertisingSyncTransferParams struct {
	ConnectionHandle uint16
	Mode             uint8
	Skip             uint16
	SyncTimeout      uint16
	CTEType          uint8
}

func (c *LESetPeriodicAdvertisingSyncTransferParams) String() string {
	return "LE Set Periodic Advertising Sync Transfer Parameters (0x08|0x005C)"
}
func (c *LESetPeriodicAdvertisingSyncTransferParams) OpCode() int {
	return LESetPeriodicAdvertisingSyncTransferParamsOpCode
}
func (c *LESetPeriodicAdvertisingSyncTransferParams) Len() int { return 8 }
func (c *LESetPeriodicAdvertisingSyncTransferParams) Marshal(b []byte) error {
	return marshal(c, c.Len(), b)
}

// LESetPeriodicAdvertisingSyncTransferParamsRP returns the return parameter
// of LE Set Periodic Advertising Sync Transfer Parameters
type LESetPeriodicAdvertisingSyncTransferParamsRP struct {
	Status           uint8
	ConnectionHandle uint16
}

// Unmarshal de-serializes the binary data and stores the result in the receiver.
func (c *LESetPeriodicAdvertisingSyncTransferParamsRP) Unmarshal(b []byte) error {
	return unmarshal(c, b)
}
