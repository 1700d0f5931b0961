package hci

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rigado/bass"
	"github.com/rigado/bass/linux/hci/evt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeLink is a controller on the other end of the transport. Every command
// written is answered by respond.
type fakeLink struct {
	mu      sync.Mutex
	written [][]byte
	respond func(op uint16, params []byte) [][]byte

	rx     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeLink() *fakeLink {
	l := &fakeLink{
		rx:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	l.respond = l.defaultResponse
	return l
}

func (l *fakeLink) Read(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, io.EOF
	case b := <-l.rx:
		return copy(p, b), nil
	case <-time.After(tick):
		return 0, nil
	}
}

func (l *fakeLink) Write(p []byte) (int, error) {
	b := append([]byte(nil), p...)
	l.mu.Lock()
	l.written = append(l.written, b)
	respond := l.respond
	l.mu.Unlock()

	op := binary.LittleEndian.Uint16(b[1:3])
	for _, r := range respond(op, b[4:]) {
		l.rx <- r
	}
	return len(p), nil
}

func (l *fakeLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeLink) inject(b []byte) {
	l.rx <- b
}

func (l *fakeLink) setRespond(f func(op uint16, params []byte) [][]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.respond = f
}

// commands returns the written commands with the given opcode.
func (l *fakeLink) commands(op uint16) [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out [][]byte
	for _, b := range l.written {
		if binary.LittleEndian.Uint16(b[1:3]) == op {
			out = append(out, b[4:])
		}
	}
	return out
}

func (l *fakeLink) opcodes() []uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []uint16
	for _, b := range l.written {
		out = append(out, binary.LittleEndian.Uint16(b[1:3]))
	}
	return out
}

func commandComplete(op uint16, params ...byte) []byte {
	b := []byte{pktTypeEvent, 0x0e, byte(3 + len(params)), 0x01, byte(op), byte(op >> 8)}
	return append(b, params...)
}

func commandStatus(status byte, op uint16) []byte {
	return []byte{pktTypeEvent, 0x0f, 0x04, status, 0x01, byte(op), byte(op >> 8)}
}

func leMeta(params ...byte) []byte {
	return append([]byte{pktTypeEvent, 0x3e, byte(len(params))}, params...)
}

var testAddrLE = []byte{0x01, 0x00, 0x00, 0xee, 0xff, 0xc0}

func (l *fakeLink) defaultResponse(op uint16, params []byte) [][]byte {
	switch op {
	case 0x1009:
		return [][]byte{commandComplete(op, append([]byte{0x00}, testAddrLE...)...)}
	case 0x2044:
		return [][]byte{commandStatus(0x00, op)}
	case 0x205c:
		return [][]byte{commandComplete(op, 0x00, params[0], params[1])}
	default:
		return [][]byte{commandComplete(op, 0x00)}
	}
}

func syncEstablished(status byte, handle uint16, sid byte) []byte {
	b := []byte{0x0e, status, byte(handle), byte(handle >> 8), sid, 0x01}
	b = append(b, testAddrLE...)
	return leMeta(append(b, 0x01, 0xa0, 0x00, 0x05)...)
}

type syncRecorder struct {
	sync.Mutex
	established []bass.SyncEstablished
	lost        []bass.SyncLost
	past        []bass.PASTReceived
	disconnects []uint16
}

func (r *syncRecorder) HandleSyncEstablished(e bass.SyncEstablished) {
	r.Lock()
	defer r.Unlock()
	r.established = append(r.established, e)
}

func (r *syncRecorder) HandleSyncLost(e bass.SyncLost) {
	r.Lock()
	defer r.Unlock()
	r.lost = append(r.lost, e)
}

func (r *syncRecorder) HandlePASTReceived(e bass.PASTReceived) {
	r.Lock()
	defer r.Unlock()
	r.past = append(r.past, e)
}

func (r *syncRecorder) HandleDisconnected(h uint16, reason uint8) {
	r.Lock()
	defer r.Unlock()
	r.disconnects = append(r.disconnects, h)
}

func (r *syncRecorder) establishedEvents() []bass.SyncEstablished {
	r.Lock()
	defer r.Unlock()
	return append([]bass.SyncEstablished(nil), r.established...)
}

func (r *syncRecorder) pastEvents() []bass.PASTReceived {
	r.Lock()
	defer r.Unlock()
	return append([]bass.PASTReceived(nil), r.past...)
}

func newTestHCI(t *testing.T) (*HCI, *fakeLink, *syncRecorder) {
	t.Helper()
	link := newFakeLink()
	rec := &syncRecorder{}

	h, err := NewHCI(bass.OptSyncEventHandler(rec), bass.OptAdvHandlerSync(true))
	require.NoError(t, err)
	require.NoError(t, h.SetTransport(link))
	require.NoError(t, h.Init())
	t.Cleanup(func() { h.Close() })
	return h, link, rec
}

var (
	target1 = bass.SyncTarget{Addr: bass.NewAddr("c0:ff:ee:00:00:01"), AddrType: bass.AddrTypeRandom, SID: 2}
	target2 = bass.SyncTarget{Addr: bass.NewAddr("c0:ff:ee:00:00:01"), AddrType: bass.AddrTypeRandom, SID: 3}
)

func TestInit(t *testing.T) {
	h, link, _ := newTestHCI(t)

	assert.Equal(t, "c0:ff:ee:00:00:01", h.Addr().String())
	assert.Equal(t, []uint16{0x0c03, 0x1009, 0x0c01, 0x2001, 0x2041}, link.opcodes())

	mask := link.commands(0x2001)[0]
	assert.Equal(t, uint64(leEventMask), binary.LittleEndian.Uint64(mask))
}

func TestInitCommandFailure(t *testing.T) {
	link := newFakeLink()
	link.setRespond(func(op uint16, params []byte) [][]byte {
		if op == 0x1009 {
			return [][]byte{commandComplete(op, 0x01)}
		}
		return link.defaultResponse(op, params)
	})

	h, err := NewHCI()
	require.NoError(t, err)
	require.NoError(t, h.SetTransport(link))
	defer h.Close()

	err = h.Init()
	require.Error(t, err)
	assert.Equal(t, ErrUnknownCommand, statusErr(err))
}

func statusErr(err error) ErrCommand {
	return ErrCommand(statusOf(err))
}

func TestCreateSyncSerialized(t *testing.T) {
	h, link, rec := newTestHCI(t)

	require.NoError(t, h.CreateSync(target1, 5, 400))
	require.NoError(t, h.CreateSync(target2, 5, 400))

	require.Eventually(t, func() bool { return len(link.commands(0x2044)) == 1 }, waitFor, tick)
	assert.Equal(t,
		[]byte{0x00, 0x02, 0x01, 0x01, 0x00, 0x00, 0xee, 0xff, 0xc0, 0x05, 0x00, 0x90, 0x01, 0x00},
		link.commands(0x2044)[0])

	// the second waits for the outcome of the first
	time.Sleep(10 * tick)
	require.Len(t, link.commands(0x2044), 1)

	link.inject(syncEstablished(0x00, 0x0003, 2))
	require.Eventually(t, func() bool { return len(link.commands(0x2044)) == 2 }, waitFor, tick)
	assert.Equal(t, byte(3), link.commands(0x2044)[1][1])

	require.Eventually(t, func() bool { return len(rec.establishedEvents()) == 1 }, waitFor, tick)
	ev := rec.establishedEvents()
	assert.Equal(t, uint16(0x0003), ev[0].SyncHandle)
	assert.Equal(t, uint8(2), ev[0].SID)
	assert.True(t, bass.SameAddr(target1.Addr, ev[0].Addr))
	assert.Equal(t, uint16(160), ev[0].Interval)
}

func TestCancelCreateSync(t *testing.T) {
	h, link, rec := newTestHCI(t)

	require.NoError(t, h.CreateSync(target1, 5, 400))
	require.NoError(t, h.CreateSync(target2, 5, 400))

	// a queued request is dropped without touching the controller
	require.NoError(t, h.CancelCreateSync(target2))
	require.Eventually(t, func() bool { return len(link.commands(0x2044)) == 1 }, waitFor, tick)

	require.NoError(t, h.CancelCreateSync(target1))
	require.Eventually(t, func() bool { return len(link.commands(0x2045)) == 1 }, waitFor, tick)

	// the controller confirms the cancel with a failed sync, not forwarded
	link.inject(syncEstablished(0x44, 0x0000, 2))
	require.NoError(t, h.CreateSync(target1, 5, 400))
	require.Eventually(t, func() bool { return len(link.commands(0x2044)) == 2 }, waitFor, tick)
	assert.Empty(t, rec.establishedEvents())

	assert.Error(t, h.CancelCreateSync(target2))
}

func TestCreateSyncCommandFailure(t *testing.T) {
	h, link, rec := newTestHCI(t)
	link.setRespond(func(op uint16, params []byte) [][]byte {
		if op == 0x2044 {
			return [][]byte{commandStatus(0x0c, op)}
		}
		return link.defaultResponse(op, params)
	})

	require.NoError(t, h.CreateSync(target1, 5, 400))
	require.Eventually(t, func() bool { return len(rec.establishedEvents()) == 1 }, waitFor, tick)

	ev := rec.establishedEvents()[0]
	assert.Equal(t, uint8(0x0c), ev.Status)
	assert.Equal(t, target1.SID, ev.SID)
	assert.True(t, bass.SameAddr(target1.Addr, ev.Addr))

	// nothing is left pending
	link.setRespond(link.defaultResponse)
	require.NoError(t, h.CreateSync(target2, 5, 400))
	require.Eventually(t, func() bool { return len(link.commands(0x2044)) == 2 }, waitFor, tick)
}

func TestSubscribePAST(t *testing.T) {
	h, link, rec := newTestHCI(t)

	require.NoError(t, h.SubscribePAST(0x0040, 5, 400))
	require.Eventually(t, func() bool { return len(link.commands(0x205c)) == 1 }, waitFor, tick)
	assert.Equal(t, []byte{0x40, 0x00, 0x03, 0x05, 0x00, 0x90, 0x01, 0x00}, link.commands(0x205c)[0])

	require.NoError(t, h.UnsubscribePAST(0x0040))
	require.Eventually(t, func() bool { return len(link.commands(0x205c)) == 2 }, waitFor, tick)
	assert.Equal(t, []byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00}, link.commands(0x205c)[1])
	assert.Empty(t, rec.pastEvents())
}

func TestSubscribePASTFailure(t *testing.T) {
	h, link, rec := newTestHCI(t)
	link.setRespond(func(op uint16, params []byte) [][]byte {
		if op == 0x205c {
			return [][]byte{commandComplete(op, 0x02, params[0], params[1])}
		}
		return link.defaultResponse(op, params)
	})

	require.NoError(t, h.SubscribePAST(0x0040, 5, 400))
	require.Eventually(t, func() bool { return len(rec.pastEvents()) == 1 }, waitFor, tick)

	ev := rec.pastEvents()[0]
	assert.Equal(t, uint8(0x02), ev.Status)
	assert.Equal(t, uint16(0x0040), ev.ConnHandle)
	assert.Nil(t, ev.Addr)
}

func TestEventsForwarded(t *testing.T) {
	_, link, rec := newTestHCI(t)

	link.inject(leMeta(0x10, 0x03, 0x00))
	link.inject(leMeta(append(append([]byte{0x18, 0x00, 0x40, 0x00, 0x00, 0x01, 0x09, 0x00, 0x02, 0x01},
		testAddrLE...), 0x01, 0xa0, 0x00, 0x05)...))
	link.inject([]byte{pktTypeEvent, 0x05, 0x04, 0x00, 0x40, 0x00, 0x13})
	// a failed disconnection is no disconnection
	link.inject([]byte{pktTypeEvent, 0x05, 0x04, 0x0c, 0x41, 0x00, 0x13})

	require.Eventually(t, func() bool {
		rec.Lock()
		defer rec.Unlock()
		return len(rec.lost) == 1 && len(rec.past) == 1 && len(rec.disconnects) == 1
	}, waitFor, tick)

	rec.Lock()
	defer rec.Unlock()
	assert.Equal(t, uint16(0x0003), rec.lost[0].SyncHandle)
	assert.Equal(t, bass.SrcID(1), rec.past[0].SrcID())
	assert.Equal(t, uint16(0x0009), rec.past[0].SyncHandle)
	assert.Equal(t, "c0:ff:ee:00:00:01", rec.past[0].Addr.String())
	assert.Equal(t, []uint16{0x0040}, rec.disconnects)
}

func extReport(status byte, sid byte, data []byte) []byte {
	r := make([]byte, 24)
	r[0] = status
	r[2] = 0x01
	copy(r[3:9], testAddrLE)
	r[9] = 0x01
	r[11] = sid
	r[12] = 0x7f
	r[13] = 0xc4
	r[14] = 0xa0
	r[23] = byte(len(data))
	return append(r, data...)
}

func TestScan(t *testing.T) {
	h, link, _ := newTestHCI(t)

	found := make(chan bass.BroadcastAdvertisement, 4)
	ctx, cancel := context.WithCancel(context.Background())
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- h.Scan(ctx, false, func(a bass.BroadcastAdvertisement) {
			found <- a
		}, func(a bass.BroadcastAdvertisement) bool {
			return a.BroadcastID != 0xdead
		})
	}()
	require.Eventually(t, func() bool { return len(link.commands(0x2042)) == 1 }, waitFor, tick)
	assert.Equal(t, []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x00}, link.commands(0x2042)[0])

	// flags, then the announcement with id 0x123456 and a broadcast name
	first := []byte{0x02, 0x01, 0x06}
	second := []byte{0x06, 0x16, 0x52, 0x18, 0x56, 0x34, 0x12, 0x05, 0x30, 'j', 'a', 'z', 'z'}
	link.inject(leMeta(append([]byte{0x0d, 0x01}, extReport(0x20, 2, first)...)...))
	link.inject(leMeta(append([]byte{0x0d, 0x01}, extReport(0x00, 2, second)...)...))

	// not a broadcast source
	link.inject(leMeta(append([]byte{0x0d, 0x01}, extReport(0x00, 4, first)...)...))
	// filtered out
	link.inject(leMeta(append([]byte{0x0d, 0x01}, extReport(0x00, 5, []byte{0x06, 0x16, 0x52, 0x18, 0xad, 0xde, 0x00})...)...))

	select {
	case a := <-found:
		assert.Equal(t, uint32(0x123456), a.BroadcastID)
		assert.Equal(t, "jazz", a.Name)
		assert.Equal(t, uint8(2), a.SID)
		assert.Equal(t, bass.AddrTypeRandom, a.AddrType)
		assert.Equal(t, int8(-60), a.RSSI)
		assert.Equal(t, uint16(160), a.PAInterval)
		assert.Equal(t, "c0:ff:ee:00:00:01", a.Addr.String())
	case <-time.After(waitFor):
		t.Fatal("no broadcast source found")
	}

	cancel()
	select {
	case err := <-scanErr:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(waitFor):
		t.Fatal("scan did not stop")
	}
	cmds := link.commands(0x2042)
	require.Len(t, cmds, 2)
	assert.Equal(t, byte(0x00), cmds[1][0])
	assert.Empty(t, found)
}

func TestFragmentsBounded(t *testing.T) {
	h, _, _ := newTestHCI(t)
	h.muAdv.Lock()
	defer h.muAdv.Unlock()

	var a [6]byte
	copy(a[:], testAddrLE)
	key := fragmentKey(a, 2)

	chunk := make([]byte, 200)
	e := evt.LEExtendedAdvertisingReport(append([]byte{0x0d, 0x01}, extReport(0x20, 2, chunk)...))
	for i := 0; i < 8; i++ {
		_, ok, err := h.assemble(e, 0)
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Len(t, h.fragments[key], 1600)

	// one more would pass the largest data set an advertiser may send
	_, ok, err := h.assemble(e, 0)
	assert.Error(t, err)
	assert.False(t, ok)
	_, buffered := h.fragments[key]
	assert.False(t, buffered)

	// the next train starts from scratch
	_, _, err = h.assemble(e, 0)
	require.NoError(t, err)
	assert.Len(t, h.fragments[key], 200)
}

func TestTruncatedReport(t *testing.T) {
	h, _, _ := newTestHCI(t)
	h.muAdv.Lock()
	defer h.muAdv.Unlock()

	// header cut short after the address, no SID or RSSI
	b := append([]byte{0x0d, 0x01}, extReport(0x00, 2, nil)[:9]...)
	_, ok, err := h.assemble(evt.LEExtendedAdvertisingReport(b), 0)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestClosed(t *testing.T) {
	h, _, _ := newTestHCI(t)
	require.NoError(t, h.Close())
	assert.Equal(t, ErrClosed, h.TerminateSync(1))
}
