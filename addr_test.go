package bass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddrFromHCI(t *testing.T) {
	a := AddrFromHCI([6]byte{0x01, 0x00, 0x00, 0xee, 0xff, 0xc0})
	assert.Equal(t, "c0:ff:ee:00:00:01", a.String())
	assert.Equal(t, []byte{0xc0, 0xff, 0xee, 0x00, 0x00, 0x01}, a.Bytes())
}

func TestHCIBytes(t *testing.T) {
	assert.Equal(t, [6]byte{0x01, 0x00, 0x00, 0xee, 0xff, 0xc0}, HCIBytes(NewAddr("C0:FF:EE:00:00:01")))
	assert.Equal(t, [6]byte{}, HCIBytes(nil))
	assert.Equal(t, [6]byte{}, HCIBytes(NewAddr("c0:ff:ee")))
	assert.Equal(t, [6]byte{}, HCIBytes(NewAddr("not an address")))
}

func TestHCIBytesRoundTrip(t *testing.T) {
	b := [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	assert.Equal(t, b, HCIBytes(AddrFromHCI(b)))
}

func TestSameAddr(t *testing.T) {
	assert.True(t, SameAddr(NewAddr("C0:FF:EE:00:00:01"), NewAddr("c0:ff:ee:00:00:01")))
	assert.False(t, SameAddr(NewAddr("c0:ff:ee:00:00:01"), NewAddr("c0:ff:ee:00:00:02")))
	assert.False(t, SameAddr(NewAddr("c0:ff:ee:00:00:01"), nil))
	assert.True(t, SameAddr(nil, nil))
}

func TestAddrTypeString(t *testing.T) {
	assert.Equal(t, "public", AddrTypePublic.String())
	assert.Equal(t, "random", AddrTypeRandom.String())
	assert.Equal(t, "addrType(0x05)", AddrType(5).String())
}
