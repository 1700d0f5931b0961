package hci

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCommand is an HCI error code returned by the controller
// [Vol 1, Part F, 1.3].
type ErrCommand byte

// Controller error codes the delegator reacts to.
const (
	ErrUnknownCommand    ErrCommand = 0x01
	ErrConnID            ErrCommand = 0x02
	ErrHardware          ErrCommand = 0x03
	ErrMemoryCapacity    ErrCommand = 0x07
	ErrConnTimeout       ErrCommand = 0x08
	ErrCommandDisallowed ErrCommand = 0x0C
	ErrInvalidParams     ErrCommand = 0x12
	ErrUnspecified       ErrCommand = 0x1F
	ErrUnsupportedRemote ErrCommand = 0x1A
	ErrLimitReached      ErrCommand = 0x43
	ErrCancelledByHost   ErrCommand = 0x44
)

var errCommandNames = map[ErrCommand]string{
	ErrUnknownCommand:    "unknown HCI command",
	ErrConnID:            "unknown connection identifier",
	ErrHardware:          "hardware failure",
	ErrMemoryCapacity:    "memory capacity exceeded",
	ErrConnTimeout:       "connection timeout",
	ErrCommandDisallowed: "command disallowed",
	ErrInvalidParams:     "invalid HCI command parameters",
	ErrUnspecified:       "unspecified error",
	ErrUnsupportedRemote: "unsupported remote feature",
	ErrLimitReached:      "limit reached",
	ErrCancelledByHost:   "operation cancelled by host",
}

func (e ErrCommand) Error() string {
	if s, ok := errCommandNames[e]; ok {
		return fmt.Sprintf("hci: %s (0x%02x)", s, byte(e))
	}
	return fmt.Sprintf("hci: error 0x%02x", byte(e))
}

// statusOf returns the HCI status an error stands for.
func statusOf(err error) uint8 {
	if e, ok := errors.Cause(err).(ErrCommand); ok {
		return uint8(e)
	}
	return statusUnspecified
}
