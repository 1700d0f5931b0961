package hci

import "time"

// HCI Packet types
const (
	pktTypeCommand uint8 = 0x01
	pktTypeACLData uint8 = 0x02
	pktTypeSCOData uint8 = 0x03
	pktTypeEvent   uint8 = 0x04
	pktTypeVendor  uint8 = 0xFF
)

const (
	chCmdBufChanSize    = 16
	chCmdBufElementSize = 64
	chCmdBufTimeout     = time.Second * 5
	cmdResponseTimeout  = time.Second * 3
	requestQueueSize    = 32
)

// Extended advertising report event type bits [Vol 4, Part E, 7.7.65.13].
const (
	evtTypLegacy         = 1 << 4
	evtTypDataStatusMask = 0x3 << 5

	dataStatusComplete   = 0x0 << 5
	dataStatusIncomplete = 0x1 << 5
	dataStatusTruncated  = 0x2 << 5
)

const (
	// leEventMask enables the LE meta events the delegator consumes.
	leEventMask = 0x000000000000001F |
		1<<(0x0D-1) | // extended advertising report
		1<<(0x0E-1) | // periodic advertising sync established
		1<<(0x10-1) | // periodic advertising sync lost
		1<<(0x18-1) // periodic advertising sync transfer received

	eventMask = 0x3dbff807fffbffff

	// statusUnspecified stands in for commands that never reached the
	// controller.
	statusUnspecified = 0x1F

	// pastTimeoutMin is the smallest sync timeout the PAST parameters accept,
	// used when turning PAST off.
	pastTimeoutMin = 0x000A
)
