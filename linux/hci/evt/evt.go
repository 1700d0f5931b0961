// Package evt decodes the HCI events the delegator consumes. Each event type
// is the raw parameter block; LE meta events keep their subevent code at
// index 0. Getters without the WErr suffix return a default on short input.
package evt

// Event codes [Vol 4, Part E, 7.7].
const (
	DisconnectionCompleteCode = 0x05
	CommandCompleteCode       = 0x0E
	CommandStatusCode         = 0x0F
	HardwareErrorCode         = 0x10
	LEMetaEventCode           = 0x3E
)

// LE meta subevent codes [Vol 4, Part E, 7.7.65].
const (
	LEExtendedAdvertisingReportSubCode          = 0x0D
	LEPeriodicAdvertisingSyncEstablishedSubCode = 0x0E
	LEPeriodicAdvertisingSyncLostSubCode        = 0x10
	LEPeriodicAdvertisingSyncTransferSubCode    = 0x18
)

// DisconnectionComplete implements Disconnection Complete (0x05) [Vol 4, Part E, 7.7.5].
type DisconnectionComplete []byte

// CommandComplete implements Command Complete (0x0E) [Vol 4, Part E, 7.7.14].
type CommandComplete []byte

// CommandStatus implements Command Status (0x0F) [Vol 4, Part E, 7.7.15].
type CommandStatus []byte

// LEExtendedAdvertisingReport implements LE Extended Advertising Report
// (0x3E|0x0D) [Vol 4, Part E, 7.7.65.13].
type LEExtendedAdvertisingReport []byte

// LEPeriodicAdvertisingSyncEstablished implements LE Periodic Advertising
// Sync Established (0x3E|0x0E) [Vol 4, Part E, 7.7.65.14].
type LEPeriodicAdvertisingSyncEstablished []byte

// LEPeriodicAdvertisingSyncLost implements LE Periodic Advertising Sync Lost
// (0x3E|0x10) [Vol 4, Part E, 7.7.65.16].
type LEPeriodicAdvertisingSyncLost []byte

// LEPeriodicAdvertisingSyncTransferReceived implements LE Periodic
// Advertising Sync Transfer Received (0x3E|0x18) [Vol 4, Part E, 7.7.65.24].
type LEPeriodicAdvertisingSyncTransferReceived []byte

func (e DisconnectionComplete) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e DisconnectionComplete) ConnectionHandle() uint16 {
	v, _ := e.ConnectionHandleWErr()
	return v
}

func (e DisconnectionComplete) Reason() uint8 {
	v, _ := e.ReasonWErr()
	return v
}

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := e.ReturnParametersWErr()
	return v
}

func (e CommandStatus) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e CommandStatus) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandStatus) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

func (e LEPeriodicAdvertisingSyncLost) SyncHandle() uint16 {
	v, _ := e.SyncHandleWErr()
	return v
}
