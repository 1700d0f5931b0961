// Package cmd holds the HCI commands the delegator issues and the return
// parameters it reads back [Vol 4, Part E, 7].
package cmd

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	ogfHostCtl = 0x03
	ogfInfo    = 0x04
	ogfLE      = 0x08
)

// Opcodes of the supported commands, OGF<<10 | OCF.
const (
	SetEventMaskOpCode                               = ogfHostCtl<<10 | 0x0001
	ResetOpCode                                      = ogfHostCtl<<10 | 0x0003
	ReadBDADDROpCode                                 = ogfInfo<<10 | 0x0009
	LESetEventMaskOpCode                             = ogfLE<<10 | 0x0001
	LESetExtendedScanParametersOpCode                = ogfLE<<10 | 0x0041
	LESetExtendedScanEnableOpCode                    = ogfLE<<10 | 0x0042
	LEPeriodicAdvertisingCreateSyncOpCode            = ogfLE<<10 | 0x0044
	LEPeriodicAdvertisingCreateSyncCancelOpCode      = ogfLE<<10 | 0x0045
	LEPeriodicAdvertisingTerminateSyncOpCode         = ogfLE<<10 | 0x0046
	LESetPeriodicAdvertisingSyncTransferParamsOpCode = ogfLE<<10 | 0x005C
)

// marshal writes the little-endian wire form of c, a struct of fixed size
// fields, into b.
func marshal(c interface{}, n int, b []byte) error {
	if len(b) < n {
		return io.ErrShortBuffer
	}
	buf := bytes.NewBuffer(b[:0])
	return binary.Write(buf, binary.LittleEndian, c)
}

func unmarshal(c interface{}, b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, c)
}

// StatusRP is the return parameter of commands that return only a status.
type StatusRP struct {
	Status uint8
}

// Unmarshal de-serializes the binary data and stores the result in the receiver.
func (c *StatusRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// SetEventMask implements Set Event Mask (0x03|0x0001) [Vol 2, Part E, 7.3.1]
type SetEventMask struct {
	EventMask uint64
}

func (c *SetEventMask) String() string { return "Set Event Mask (0x03|0x0001)" }
func (c *SetEventMask) OpCode() int { return SetEventMaskOpCode }
func (c *SetEventMask) Len() int { return 8 }
func (c *SetEventMask) Marshal(b []byte) error { return marshal(c, c.Len(), b) }

// Reset implements Reset (0x03|0x0003) [Vol 2, Part E, 7.3.2]
type Reset struct{}

func (c *Reset) String() string { return "Reset (0x03|0x0003)" }
func (c *Reset) OpCode() int { return ResetOpCode }
func (c *Reset) Len() int { return 0 }
func (c *Reset) Marshal(b []byte) error { return nil }

// ReadBDADDR implements Read BD_ADDR (0x04|0x0009) [Vol 2, Part E, 7.4.6]
type ReadBDADDR struct{}

func (c *ReadBDADDR) String() string { return "Read BD_ADDR (0x04|0x0009)" }
func (c *ReadBDADDR) OpCode() int { return ReadBDADDROpCode }
func (c *ReadBDADDR) Len() int { return 0 }
func (c *ReadBDADDR) Marshal(b []byte) error { return nil }

// ReadBDADDRRP returns the return parameter of Read BD_ADDR
type ReadBDADDRRP struct {
	Status uint8
	BDADDR [6]byte
}

// Unmarshal de-serializes the binary data and stores the result in the receiver.
func (c *ReadBDADDRRP) Unmarshal(b []byte) error { return unmarshal(c, b) }
