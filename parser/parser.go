// Package parser decodes the AD structures of extended advertising data and
// pulls the Broadcast Audio Announcement out of them.
package parser

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/rigado/bass/sliceops"
)

var (
	ErrEmptyPdu     = errors.New("nil/empty pdu")
	ErrNotBroadcast = errors.New("no broadcast audio announcement")
)

// BroadcastAudioAnnouncement is the 16-bit service UUID of the Broadcast
// Audio Announcement service data.
const BroadcastAudioAnnouncement = "1852"

// assigned numbers, generic access profile
var types = struct {
	flags         byte
	uuid16inc     byte
	uuid16comp    byte
	uuid32inc     byte
	uuid32comp    byte
	uuid128inc    byte
	uuid128comp   byte
	svc16         byte
	svc32         byte
	svc128        byte
	nameshort     byte
	namecomp      byte
	txpwr         byte
	broadcastName byte
	mfgdata       byte
}{
	flags:         0x01,
	uuid16inc:     0x02,
	uuid16comp:    0x03,
	uuid32inc:     0x04,
	uuid32comp:    0x05,
	uuid128inc:    0x06,
	uuid128comp:   0x07,
	svc16:         0x16,
	svc32:         0x20,
	svc128:        0x21,
	nameshort:     0x08,
	namecomp:      0x09,
	txpwr:         0x0a,
	broadcastName: 0x30,
	mfgdata:       0xff,
}

type field uint8

const (
	fieldFlags field = iota
	fieldServices
	fieldServiceData
	fieldName
	fieldTxPower
	fieldBroadcastName
	fieldMfg
)

type pduRecord struct {
	arrayElementSz int
	minSz          int
	svcDataUUIDSz  int
	field          field
}

var pduDecodeMap = map[byte]pduRecord{
	types.uuid16inc:     {2, 2, 0, fieldServices},
	types.uuid16comp:    {2, 2, 0, fieldServices},
	types.uuid32inc:     {4, 4, 0, fieldServices},
	types.uuid32comp:    {4, 4, 0, fieldServices},
	types.uuid128inc:    {16, 16, 0, fieldServices},
	types.uuid128comp:   {16, 16, 0, fieldServices},
	types.svc16:         {0, 2, 2, fieldServiceData},
	types.svc32:         {0, 4, 4, fieldServiceData},
	types.svc128:        {0, 16, 16, fieldServiceData},
	types.namecomp:      {0, 1, 0, fieldName},
	types.nameshort:     {0, 1, 0, fieldName},
	types.txpwr:         {0, 1, 0, fieldTxPower},
	types.broadcastName: {0, 4, 0, fieldBroadcastName},
	types.mfgdata:       {0, 2, 0, fieldMfg},
	types.flags:         {0, 1, 0, fieldFlags},
}

// UUID is a service UUID in the little-endian order it is advertised in.
type UUID []byte

// String returns the UUID in its usual big-endian hex form.
func (u UUID) String() string {
	return hex.EncodeToString(sliceops.SwapBuf(u))
}

// Fields is the decoded content of an advertising PDU.
type Fields struct {
	Flags         byte
	Services      []UUID
	ServiceData   map[string][][]byte
	Name          string
	BroadcastName string
	TxPower       *int8
	MfgData       []byte
}

func getArray(size int, bytes []byte) ([]UUID, error) {
	if size <= 0 {
		return nil, errors.New("invalid size")
	}
	if len(bytes) == 0 {
		return nil, errors.New("nil/empty bytes")
	}

	count := len(bytes) / size
	rem := len(bytes) % size
	if rem != 0 || count == 0 {
		return nil, errors.New("incorrect size")
	}

	arr := make([]UUID, 0, count)
	for j := 0; j < len(bytes); j += size {
		arr = append(arr, UUID(bytes[j:(j+size)]))
	}
	return arr, nil
}

// Parse decodes every AD structure of pdu. Unknown types are skipped.
func Parse(pdu []byte) (Fields, error) {
	f := Fields{}
	if len(pdu) == 0 {
		return f, ErrEmptyPdu
	}

	for i := 0; (i + 1) < len(pdu); {
		// length, type, length-1 bytes of data
		length := int(pdu[i])
		typ := pdu[i+1]

		if length < 1 {
			return f, errors.Errorf("invalid record length %v, idx %v", length, i)
		}
		if (i + length) >= len(pdu) {
			return f, errors.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		start := i + 2
		end := start + length - 1
		bytes := make([]byte, end-start)
		copy(bytes, pdu[start:end])

		dec, ok := pduDecodeMap[typ]
		if ok && len(bytes) != 0 {
			if dec.minSz > len(bytes) {
				return f, errors.Errorf("adv type %v: min length %v, have %v, idx %v", typ, dec.minSz, len(bytes), i)
			}
			if err := f.set(dec, bytes); err != nil {
				return f, errors.Wrapf(err, "adv type %v, idx %v", typ, i)
			}
		}

		i += length + 1
	}

	return f, nil
}

func (f *Fields) set(dec pduRecord, bytes []byte) error {
	switch dec.field {
	case fieldServices:
		arr, err := getArray(dec.arrayElementSz, bytes)
		if err != nil {
			return err
		}
		f.Services = append(f.Services, arr...)

	case fieldServiceData:
		su := UUID(bytes[:dec.svcDataUUIDSz]).String()
		if f.ServiceData == nil {
			f.ServiceData = make(map[string][][]byte)
		}
		f.ServiceData[su] = append(f.ServiceData[su], bytes[dec.svcDataUUIDSz:])

	case fieldName:
		f.Name = string(bytes)

	case fieldBroadcastName:
		f.BroadcastName = string(bytes)

	case fieldTxPower:
		p := int8(bytes[0])
		f.TxPower = &p

	case fieldMfg:
		if f.MfgData == nil {
			f.MfgData = bytes
		} else {
			// the scan response repeats the company id
			f.MfgData = append(f.MfgData, bytes[2:]...)
		}

	case fieldFlags:
		f.Flags = bytes[0]
	}
	return nil
}

// Broadcast is the part of an advertisement a scan delegator needs to offer
// a broadcast source.
type Broadcast struct {
	BroadcastID uint32
	Name        string
}

// ParseBroadcast decodes pdu and extracts its Broadcast Audio Announcement.
// ErrNotBroadcast is returned for advertisements that carry none.
func ParseBroadcast(pdu []byte) (Broadcast, error) {
	f, err := Parse(pdu)
	if err != nil {
		return Broadcast{}, err
	}

	var b Broadcast
	sds := f.ServiceData[BroadcastAudioAnnouncement]
	for _, sd := range sds {
		if len(sd) < 3 {
			continue
		}
		b.BroadcastID = uint32(sd[0]) | uint32(sd[1])<<8 | uint32(sd[2])<<16
		b.Name = f.BroadcastName
		if b.Name == "" {
			b.Name = f.Name
		}
		return b, nil
	}
	return Broadcast{}, ErrNotBroadcast
}
