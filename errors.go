package bass

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTableFull is returned by Add Source when every receive state is in use.
	ErrTableFull = errors.New("receive state table full")

	// ErrUnknownSource is returned for a src_id that names no receive state.
	ErrUnknownSource = errors.New("unknown source id")

	// ErrAlreadySyncing is returned when a slot already owns a sync attempt.
	ErrAlreadySyncing = errors.New("pa sync already in progress")

	// ErrInvalidParam is returned for parameters outside the allowed ranges.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrClosed is returned once the delegator has been stopped.
	ErrClosed = errors.New("delegator closed")
)

// ATT error codes used by the scan delegator.
const (
	ATTErrWriteRequestRejected uint8 = 0xFC
	ATTErrInsufficientResource uint8 = 0x11
	ATTErrValueNotAllowed      uint8 = 0x13
	ATTErrOpcodeNotSupported   uint8 = 0x80
	ATTErrInvalidSourceID      uint8 = 0x81
	ATTErrUnlikely             uint8 = 0x0E
)

// Operation names a control point operation.
type Operation uint8

const (
	OpAddSource     Operation = 0x02
	OpModifySource  Operation = 0x03
	OpBroadcastCode Operation = 0x04
	OpRemoveSource  Operation = 0x05
)

func (o Operation) String() string {
	switch o {
	case OpAddSource:
		return "add source"
	case OpModifySource:
		return "modify source"
	case OpBroadcastCode:
		return "set broadcast code"
	case OpRemoveSource:
		return "remove source"
	default:
		return fmt.Sprintf("op(0x%02x)", uint8(o))
	}
}

// RejectError is an authorization veto of a control point operation.
type RejectError struct {
	Op    Operation
	SrcID SrcID
	Code  uint8
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%v of src %d rejected (att 0x%02x)", e.Op, e.SrcID, e.Code)
}

// Reject returns the error an Authorizer uses to veto an operation.
func Reject(code uint8) error {
	return &RejectError{Code: code}
}

// IsRejected reports whether err is an authorization veto.
func IsRejected(err error) bool {
	_, ok := errors.Cause(err).(*RejectError)
	return ok
}

// ATTError maps a control point error onto the ATT error the GATT layer
// returns to the writer. A nil error maps to 0.
func ATTError(err error) uint8 {
	if err == nil {
		return 0
	}

	switch e := errors.Cause(err).(type) {
	case *RejectError:
		return e.Code
	}

	switch errors.Cause(err) {
	case ErrUnknownSource:
		return ATTErrInvalidSourceID
	case ErrTableFull:
		return ATTErrInsufficientResource
	case ErrInvalidParam:
		return ATTErrValueNotAllowed
	default:
		return ATTErrUnlikely
	}
}
