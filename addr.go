package bass

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rigado/bass/sliceops"
)

// AddrType is the LE address type of an advertiser.
type AddrType uint8

// LE address types [Vol 4, Part E, 7.8.67].
const (
	AddrTypePublic AddrType = 0x00
	AddrTypeRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrTypePublic:
		return "public"
	case AddrTypeRandom:
		return "random"
	default:
		return fmt.Sprintf("addrType(0x%02x)", uint8(t))
	}
}

// Addr represents a device address in its colon separated, MSB first form.
type Addr interface {
	String() string
	Bytes() []byte
}

// NewAddr creates an Addr from string
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

// AddrFromHCI creates an Addr from the little-endian bytes found in HCI
// commands and events.
func AddrFromHCI(b [6]byte) Addr {
	msb := sliceops.SwapBuf(b[:])
	parts := make([]string, len(msb))
	for i, v := range msb {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return addr(strings.Join(parts, ":"))
}

// HCIBytes returns a in the little-endian order HCI expects.
// Malformed addresses yield all zero bytes.
func HCIBytes(a Addr) [6]byte {
	var out [6]byte
	if a == nil {
		return out
	}
	b := a.Bytes()
	if len(b) != len(out) {
		return out
	}
	copy(out[:], sliceops.SwapBuf(b))
	return out
}

// SameAddr reports whether a and b name the same device.
func SameAddr(a, b Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(a.String(), b.String())
}

type addr string

func (a addr) String() string {
	return string(a)
}

func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		GetLogger().Warnf("error decoding address %s: %v", a.String(), err)
		return nil
	}

	return out
}
