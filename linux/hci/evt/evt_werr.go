package evt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrIndex is returned by the WErr getters when an event is too short.
var ErrIndex = errors.New("index error")

func (e DisconnectionComplete) StatusWErr() (uint8, error) {
	return getByte(e, 0, 0xff)
}

func (e DisconnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}

func (e DisconnectionComplete) ReasonWErr() (uint8, error) {
	return getByte(e, 3, 0)
}

func (e CommandComplete) NumHCICommandPacketsWErr() (uint8, error) {
	return getByte(e, 0, 0)
}

func (e CommandComplete) CommandOpcodeWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}

func (e CommandComplete) ReturnParametersWErr() ([]byte, error) {
	if len(e) == 3 {
		// no return parameters at all, e.g. a NOP
		return []byte{}, nil
	}
	return getBytes(e, 3, -1)
}

func (e CommandStatus) StatusWErr() (uint8, error) {
	return getByte(e, 0, 0xff)
}

func (e CommandStatus) NumHCICommandPacketsWErr() (uint8, error) {
	return getByte(e, 1, 0)
}

func (e CommandStatus) CommandOpcodeWErr() (uint16, error) {
	return getUint16LE(e, 2, 0xffff)
}

func (e LEPeriodicAdvertisingSyncEstablished) StatusWErr() (uint8, error) {
	return getByte(e, 1, 0xff)
}

func (e LEPeriodicAdvertisingSyncEstablished) SyncHandleWErr() (uint16, error) {
	return getUint16LE(e, 2, 0xffff)
}

func (e LEPeriodicAdvertisingSyncEstablished) AdvertisingSIDWErr() (uint8, error) {
	return getByte(e, 4, 0)
}

func (e LEPeriodicAdvertisingSyncEstablished) AdvertiserAddressTypeWErr() (uint8, error) {
	return getByte(e, 5, 0)
}

func (e LEPeriodicAdvertisingSyncEstablished) AdvertiserAddressWErr() ([6]byte, error) {
	return getAddr(e, 6)
}

func (e LEPeriodicAdvertisingSyncEstablished) AdvertiserPHYWErr() (uint8, error) {
	return getByte(e, 12, 0)
}

func (e LEPeriodicAdvertisingSyncEstablished) PeriodicAdvertisingIntervalWErr() (uint16, error) {
	return getUint16LE(e, 13, 0)
}

func (e LEPeriodicAdvertisingSyncLost) SyncHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) StatusWErr() (uint8, error) {
	return getByte(e, 1, 0xff)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 2, 0xffff)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) ServiceDataWErr() (uint16, error) {
	return getUint16LE(e, 4, 0)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) SyncHandleWErr() (uint16, error) {
	return getUint16LE(e, 6, 0xffff)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) AdvertisingSIDWErr() (uint8, error) {
	return getByte(e, 8, 0)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) AdvertiserAddressTypeWErr() (uint8, error) {
	return getByte(e, 9, 0)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) AdvertiserAddressWErr() ([6]byte, error) {
	return getAddr(e, 10)
}

func (e LEPeriodicAdvertisingSyncTransferReceived) PeriodicAdvertisingIntervalWErr() (uint16, error) {
	return getUint16LE(e, 17, 0)
}

// extended advertising report layout, relative to the report start
const (
	extReportHeaderLen = 24
	extReportDataLen   = 23
)

func (e LEExtendedAdvertisingReport) NumReportsWErr() (uint8, error) {
	return getByte(e, 1, 0)
}

// reportWErr returns report i, header and data. Reports have variable
// length, so earlier reports are walked.
func (e LEExtendedAdvertisingReport) reportWErr(i int) ([]byte, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return nil, err
	}
	if i >= int(nr) {
		return nil, ErrIndex
	}

	si := 2
	for j := 0; ; j++ {
		l, err := getByte(e, si+extReportDataLen, 0)
		if err != nil {
			return nil, err
		}
		n := extReportHeaderLen + int(l)
		if j == i {
			return getBytes(e, si, n)
		}
		si += n
	}
}

func (e LEExtendedAdvertisingReport) EventTypeWErr(i int) (uint16, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0, err
	}
	return getUint16LE(r, 0, 0)
}

func (e LEExtendedAdvertisingReport) AddressTypeWErr(i int) (uint8, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0xff, err
	}
	return getByte(r, 2, 0xff)
}

func (e LEExtendedAdvertisingReport) AddressWErr(i int) ([6]byte, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return [6]byte{}, err
	}
	return getAddr(r, 3)
}

func (e LEExtendedAdvertisingReport) AdvertisingSIDWErr(i int) (uint8, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0xff, err
	}
	return getByte(r, 11, 0xff)
}

func (e LEExtendedAdvertisingReport) TxPowerWErr(i int) (int8, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0, err
	}
	v, err := getByte(r, 12, 0x7f)
	return int8(v), err
}

func (e LEExtendedAdvertisingReport) RSSIWErr(i int) (int8, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0, err
	}
	v, err := getByte(r, 13, 0x7f)
	return int8(v), err
}

func (e LEExtendedAdvertisingReport) PeriodicAdvertisingIntervalWErr(i int) (uint16, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return 0, err
	}
	return getUint16LE(r, 14, 0)
}

func (e LEExtendedAdvertisingReport) DataWErr(i int) ([]byte, error) {
	r, err := e.reportWErr(i)
	if err != nil {
		return nil, err
	}
	return r[extReportHeaderLen:], nil
}

//get or default
func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

//get or default
func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getAddr(b []byte, i int) ([6]byte, error) {
	out := [6]byte{}
	bb, err := getBytes(b, i, 6)
	if err != nil {
		return out, err
	}
	copy(out[:], bb)
	return out, nil
}

func getBytes(bytes []byte, start int, count int) ([]byte, error) {
	if bytes == nil || start >= len(bytes) {
		return nil, ErrIndex
	}

	if count < 0 {
		return bytes[start:], nil
	}

	end := start + count
	//end is non-inclusive
	if end > len(bytes) {
		return nil, ErrIndex
	}

	return bytes[start:end], nil
}
