package delegator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rigado/bass"
	"github.com/stretchr/testify/require"
)

const testTimeout = time.Second

type fakeConn uint16

func (c fakeConn) Handle() uint16 { return uint16(c) }
func (c fakeConn) RemoteAddr() bass.Addr { return bass.NewAddr("11:22:33:44:55:66") }

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.Lock()
	defer t.clock.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) bass.Timer {
	c.Lock()
	defer c.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs timer i even when it was stopped, the way a real timer can race
// its Stop.
func (c *fakeClock) fire(i int) {
	c.Lock()
	t := c.timers[i]
	t.fired = true
	c.Unlock()
	t.f()
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.Lock()
	defer c.Unlock()
	return c.timers[i]
}

func (c *fakeClock) count() int {
	c.Lock()
	defer c.Unlock()
	return len(c.timers)
}

type fakeController struct {
	sync.Mutex
	calls   []string
	failAll error
}

func (c *fakeController) record(format string, args ...interface{}) error {
	c.Lock()
	defer c.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	return c.failAll
}

func (c *fakeController) CreateSync(t bass.SyncTarget, skip, timeout uint16) error {
	return c.record("create %s/%d skip %d timeout %d", t.Addr, t.SID, skip, timeout)
}

func (c *fakeController) CancelCreateSync(t bass.SyncTarget) error {
	return c.record("cancel %s/%d", t.Addr, t.SID)
}

func (c *fakeController) TerminateSync(h uint16) error {
	return c.record("terminate 0x%04x", h)
}

func (c *fakeController) SubscribePAST(conn, skip, timeout uint16) error {
	return c.record("past 0x%04x skip %d timeout %d", conn, skip, timeout)
}

func (c *fakeController) UnsubscribePAST(conn uint16) error {
	return c.record("unpast 0x%04x", conn)
}

func (c *fakeController) history() []string {
	c.Lock()
	defer c.Unlock()
	return append([]string(nil), c.calls...)
}

type recorder struct {
	sync.Mutex
	changed []bass.ReceiveState
	removed []bass.SrcID
}

func (r *recorder) ReceiveStateChanged(s bass.ReceiveState) {
	r.Lock()
	defer r.Unlock()
	r.changed = append(r.changed, s)
}

func (r *recorder) ReceiveStateRemoved(id bass.SrcID) {
	r.Lock()
	defer r.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recorder) states() []bass.ReceiveState {
	r.Lock()
	defer r.Unlock()
	return append([]bass.ReceiveState(nil), r.changed...)
}

func (r *recorder) removals() []bass.SrcID {
	r.Lock()
	defer r.Unlock()
	return append([]bass.SrcID(nil), r.removed...)
}

func (r *recorder) last() bass.ReceiveState {
	r.Lock()
	defer r.Unlock()
	return r.changed[len(r.changed)-1]
}

type bisCall struct {
	id        bass.SrcID
	decisions []bass.BISDecision
	code      *bass.BroadcastCode
}

type fakeBIS struct {
	sync.Mutex
	calls []bisCall
}

func (b *fakeBIS) SyncBIS(id bass.SrcID, decisions []bass.BISDecision, code *bass.BroadcastCode) {
	b.Lock()
	defer b.Unlock()
	b.calls = append(b.calls, bisCall{id, decisions, code})
}

func (b *fakeBIS) history() []bisCall {
	b.Lock()
	defer b.Unlock()
	return append([]bisCall(nil), b.calls...)
}

type memCache struct {
	sync.Mutex
	states []bass.ReceiveState
	stores int
}

func (c *memCache) Store(s []bass.ReceiveState) error {
	c.Lock()
	defer c.Unlock()
	c.states = s
	c.stores++
	return nil
}

func (c *memCache) Load() ([]bass.ReceiveState, error) {
	c.Lock()
	defer c.Unlock()
	return c.states, nil
}

func (c *memCache) Clear() error {
	c.Lock()
	defer c.Unlock()
	c.states = nil
	return nil
}

type harness struct {
	*Delegator
	clock *fakeClock
	ctrl  *fakeController
	rec   *recorder
	bis   *fakeBIS
}

func newHarness(t *testing.T, opts ...bass.Option) *harness {
	t.Helper()
	h := &harness{
		clock: &fakeClock{},
		ctrl:  &fakeController{},
		rec:   &recorder{},
		bis:   &fakeBIS{},
	}
	base := []bass.Option{
		bass.OptController(h.ctrl),
		bass.OptClock(h.clock),
		bass.OptNotifier(h.rec),
		bass.OptBISHandler(h.bis),
	}
	d, err := New(append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { d.Close() })
	h.Delegator = d
	return h
}

// settle waits until every event posted so far has been handled.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	_, err := h.ReceiveStates(ctx(t))
	require.NoError(t, err)
}

func (h *harness) state(t *testing.T, id bass.SrcID) bass.ReceiveState {
	t.Helper()
	rs, err := h.ReceiveState(ctx(t), id)
	require.NoError(t, err)
	return rs
}

// onLoop runs f on the delegator goroutine.
func (h *harness) onLoop(t *testing.T, f func()) {
	t.Helper()
	require.NoError(t, h.call(ctx(t), f))
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return c
}

var testSource = bass.SourceParams{
	Addr:        bass.NewAddr("c0:ff:ee:00:00:01"),
	AddrType:    bass.AddrTypeRandom,
	SID:         2,
	BroadcastID: 1234,
	PASync:      bass.NoSync,
	PAInterval:  160,
	Subgroups:   []bass.SubgroupParams{{BISSync: bass.BISSyncNoPref}},
}

func source(pa bass.PASyncRequest, bis ...uint32) bass.SourceParams {
	p := testSource
	p.PASync = pa
	p.Subgroups = nil
	for _, b := range bis {
		p.Subgroups = append(p.Subgroups, bass.SubgroupParams{BISSync: b})
	}
	if len(p.Subgroups) == 0 {
		p.Subgroups = testSource.Subgroups
	}
	return p
}

func modify(pa bass.PASyncRequest, bis ...uint32) bass.ModifyParams {
	p := bass.ModifyParams{PASync: pa, PAInterval: testSource.PAInterval}
	for _, b := range bis {
		p.Subgroups = append(p.Subgroups, bass.SubgroupParams{BISSync: b})
	}
	return p
}

func (t *fakeTimer) isStopped() bool {
	t.clock.Lock()
	defer t.clock.Unlock()
	return t.stopped
}
