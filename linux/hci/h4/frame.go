package h4

import (
	"time"

	"github.com/pkg/errors"
)

// H4 packet indicators.
const (
	commandPacket = 0x01
	aclPacket     = 0x02
	eventPacket   = 0x04
)

const (
	headerOffsetEventLength = 2
	eventHeaderLength       = 3
	aclHeaderLength         = 5
	frameTimeout            = 500 * time.Millisecond
)

var errShortFrame = errors.New("not enough bytes")

// frame reassembles H4 packets out of an arbitrarily chunked byte stream
// and pushes each complete packet to out.
type frame struct {
	b       []byte
	timeout time.Time
	out     chan<- []byte
	pktType byte
	now     func() time.Time
}

func newFrame(c chan<- []byte) *frame {
	return &frame{
		b:   make([]byte, 0, 256),
		out: c,
		now: time.Now,
	}
}

func (f *frame) Assemble(b []byte) {
	switch {
	case len(b) == 0:
		return

	case !f.timeout.IsZero() && f.now().After(f.timeout):
		// a stalled partial frame is dropped
		f.reset()
	}

	if len(f.b) == 0 {
		if err := f.waitStart(b); err != nil {
			return
		}
	} else {
		f.b = append(f.b, b...)
	}

	for len(f.b) > 0 {
		rf, err := f.frame()
		if err != nil {
			return
		}
		out := make([]byte, len(rf))
		copy(out, rf)
		f.out <- out

		rem := f.b[len(rf):]
		f.reset()
		if len(rem) == 0 {
			return
		}
		if err := f.waitStart(rem); err != nil {
			return
		}
	}
}

func (f *frame) reset() {
	f.b = make([]byte, 0, 256)
	f.timeout = time.Time{}
	f.pktType = 0
}

// waitStart skips to the first packet indicator in b and starts a frame
// there.
func (f *frame) waitStart(b []byte) error {
	for i, v := range b {
		switch v {
		case eventPacket, aclPacket:
		default:
			continue
		}

		f.pktType = v
		f.timeout = f.now().Add(frameTimeout)
		f.b = append(f.b, b[i:]...)
		return nil
	}
	return errors.New("couldnt find start byte")
}

func (f *frame) dataLength() (int, error) {
	switch f.pktType {
	case aclPacket:
		return f.aclLength()
	case eventPacket:
		return f.eventLength()
	default:
		return 0, errors.Errorf("invalid packet type %v", f.pktType)
	}
}

func (f *frame) eventLength() (int, error) {
	if len(f.b) < eventHeaderLength {
		return 0, errShortFrame
	}
	return int(f.b[headerOffsetEventLength]) + eventHeaderLength, nil
}

func (f *frame) aclLength() (int, error) {
	if len(f.b) < aclHeaderLength {
		return 0, errShortFrame
	}
	l := int(f.b[3]) | (int(f.b[4]) << 8)
	return l + aclHeaderLength, nil
}

func (f *frame) frame() ([]byte, error) {
	tl, err := f.dataLength()
	if err != nil {
		return nil, err
	}
	if len(f.b) < tl {
		return nil, errShortFrame
	}
	return f.b[:tl], nil
}
