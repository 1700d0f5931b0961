package evt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandComplete(t *testing.T) {
	e := CommandComplete{0x01, 0x09, 0x10, 0x00, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	assert.Equal(t, uint8(1), e.NumHCICommandPackets())
	assert.Equal(t, uint16(0x1009), e.CommandOpcode())
	assert.Equal(t, []byte{0x00, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, e.ReturnParameters())

	nop := CommandComplete{0x01, 0x00, 0x00}
	rp, err := nop.ReturnParametersWErr()
	require.NoError(t, err)
	assert.Empty(t, rp)

	_, err = CommandComplete{0x01}.CommandOpcodeWErr()
	assert.Equal(t, ErrIndex, err)
	assert.Equal(t, uint16(0xffff), CommandComplete{0x01}.CommandOpcode())
}

func TestCommandStatus(t *testing.T) {
	e := CommandStatus{0x0c, 0x01, 0x44, 0x20}
	assert.Equal(t, uint8(0x0c), e.Status())
	assert.Equal(t, uint8(1), e.NumHCICommandPackets())
	assert.Equal(t, uint16(0x2044), e.CommandOpcode())
}

func TestDisconnectionComplete(t *testing.T) {
	e := DisconnectionComplete{0x00, 0x40, 0x00, 0x13}
	assert.Equal(t, uint8(0), e.Status())
	assert.Equal(t, uint16(0x0040), e.ConnectionHandle())
	assert.Equal(t, uint8(0x13), e.Reason())
}

func TestSyncEstablished(t *testing.T) {
	e := LEPeriodicAdvertisingSyncEstablished{
		LEPeriodicAdvertisingSyncEstablishedSubCode,
		0x00,       // status
		0x03, 0x00, // handle
		0x02,                               // sid
		0x01,                               // addr type
		0x01, 0x00, 0x00, 0xee, 0xff, 0xc0, // addr
		0x01,       // phy
		0xa0, 0x00, // interval
		0x05, // clock accuracy
	}

	st, err := e.StatusWErr()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), st)
	h, err := e.SyncHandleWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), h)
	sid, err := e.AdvertisingSIDWErr()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), sid)
	at, err := e.AdvertiserAddressTypeWErr()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), at)
	a, err := e.AdvertiserAddressWErr()
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x01, 0x00, 0x00, 0xee, 0xff, 0xc0}, a)
	iv, err := e.PeriodicAdvertisingIntervalWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(160), iv)

	_, err = e[:8].AdvertiserAddressWErr()
	assert.Error(t, err)
}

func TestSyncLost(t *testing.T) {
	assert.Equal(t, uint16(0x0102), LEPeriodicAdvertisingSyncLost{0x10, 0x02, 0x01}.SyncHandle())
	assert.Equal(t, uint16(0xffff), LEPeriodicAdvertisingSyncLost{0x10}.SyncHandle())
}

func TestSyncTransferReceived(t *testing.T) {
	e := LEPeriodicAdvertisingSyncTransferReceived{
		LEPeriodicAdvertisingSyncTransferSubCode,
		0x00,       // status
		0x40, 0x00, // conn
		0x00, 0x01, // service data
		0x09, 0x00, // sync handle
		0x02,                               // sid
		0x01,                               // addr type
		0x01, 0x00, 0x00, 0xee, 0xff, 0xc0, // addr
		0x01,       // phy
		0xa0, 0x00, // interval
		0x05, // clock accuracy
	}

	c, err := e.ConnectionHandleWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0040), c)
	sd, err := e.ServiceDataWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), sd)
	h, err := e.SyncHandleWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(9), h)
	a, err := e.AdvertiserAddressWErr()
	require.NoError(t, err)
	assert.Equal(t, byte(0xc0), a[5])
	iv, err := e.PeriodicAdvertisingIntervalWErr()
	require.NoError(t, err)
	assert.Equal(t, uint16(160), iv)
}

func extReport(sid uint8, data []byte) []byte {
	r := make([]byte, extReportHeaderLen, extReportHeaderLen+len(data))
	r[0] = 0x00 // complete, non connectable
	r[2] = 0x01
	copy(r[3:9], []byte{0x01, 0x00, 0x00, 0xee, 0xff, 0xc0})
	r[9] = 0x01
	r[11] = sid
	r[12] = 0x7f
	r[13] = 0xc4 // -60 dBm
	r[14] = 0xa0
	r[extReportDataLen] = byte(len(data))
	return append(r, data...)
}

func TestExtendedAdvertisingReport(t *testing.T) {
	b := []byte{LEExtendedAdvertisingReportSubCode, 2}
	b = append(b, extReport(2, []byte{0x02, 0x01, 0x06})...)
	b = append(b, extReport(5, nil)...)
	e := LEExtendedAdvertisingReport(b)

	n, err := e.NumReportsWErr()
	require.NoError(t, err)
	require.Equal(t, uint8(2), n)

	sid, err := e.AdvertisingSIDWErr(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), sid)
	d, err := e.DataWErr(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x06}, d)
	rssi, err := e.RSSIWErr(0)
	require.NoError(t, err)
	assert.Equal(t, int8(-60), rssi)
	iv, err := e.PeriodicAdvertisingIntervalWErr(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(160), iv)

	sid, err = e.AdvertisingSIDWErr(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), sid)
	d, err = e.DataWErr(1)
	require.NoError(t, err)
	assert.Empty(t, d)
	a, err := e.AddressWErr(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), a[0])

	_, err = e.DataWErr(2)
	assert.Equal(t, ErrIndex, err)

	// truncated data
	_, err = LEExtendedAdvertisingReport(b[:len(b)-extReportHeaderLen-1]).DataWErr(0)
	assert.Error(t, err)
}
