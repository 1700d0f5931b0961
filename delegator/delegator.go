package delegator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

const (
	eventQueueSize = 64

	// maxOrphans bounds the unclaimed syncs kept for adoption.
	maxOrphans = 4
)

type event func()

// orphan is a sync the controller established without any slot asking for
// it, kept until an Add Source for the same train adopts it.
type orphan struct {
	target   bass.SyncTarget
	handle   uint16
	interval uint16
}

// Delegator is the scan delegator of one BASS server. All state is owned
// by a single loop goroutine; the exported methods post work to it.
type Delegator struct {
	recvStateCount int
	skip           uint16
	ratio          int

	ctrl     bass.Controller
	notifier bass.Notifier
	auth     bass.Authorizer
	bis      bass.BISHandler
	cache    bass.SourceCache
	clock    bass.Clock
	logger   bass.Logger

	events    chan event
	done      chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by the loop
	table   *table
	pa      *paSyncManager
	orphans []orphan
}

// New returns a delegator configured by opts. Call Start before use.
func New(opts ...bass.Option) (*Delegator, error) {
	d := &Delegator{
		recvStateCount: bass.DefaultRecvStateCount,
		skip:           bass.PASyncSkip,
		ratio:          bass.PASyncIntervalToTimeoutRatio,
		clock:          bass.SystemClock{},
		events:         make(chan event, eventQueueSize),
		done:           make(chan struct{}),
	}
	if err := d.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	if d.logger == nil {
		d.logger = bass.GetLogger().ChildLogger(map[string]interface{}{"pkg": "delegator"})
	}
	if d.ctrl == nil {
		return nil, errors.New("no controller")
	}
	if d.auth == nil {
		d.auth = AllowAll()
	}

	d.table = newTable(d.recvStateCount)
	d.pa = newPASyncManager(d.ctrl, d.clock, d.logger, d.postTimer)
	return d, nil
}

// Option sets the options specified.
func (d *Delegator) Option(opts ...bass.Option) error {
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return err
		}
	}
	return nil
}

// Start restores cached sources and starts the loop.
func (d *Delegator) Start() error {
	var err error
	d.startOnce.Do(func() {
		d.started.Store(true)
		d.wg.Add(1)
		go d.loop()
		if d.cache != nil {
			err = d.Restore(context.Background())
		}
	})
	return err
}

// Close stops the loop and releases every sync.
func (d *Delegator) Close() error {
	d.closeOnce.Do(func() {
		if d.started.Load() {
			d.call(context.Background(), func() {
				for _, s := range d.table.active() {
					d.pa.cancel(s)
				}
				for _, o := range d.orphans {
					d.terminate(o.handle)
				}
				d.orphans = nil
			})
		}
		close(d.done)
	})
	d.wg.Wait()
	return nil
}

func (d *Delegator) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case f := <-d.events:
			f()
		}
	}
}

// post queues f for the loop without waiting.
func (d *Delegator) post(f event) {
	select {
	case <-d.done:
	case d.events <- f:
	}
}

// call runs f on the loop and waits for it. If ctx ends after f was queued,
// f still runs.
func (d *Delegator) call(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	select {
	case <-d.done:
		return bass.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case d.events <- func() { f(); close(ran) }:
	}

	select {
	case <-d.done:
		return bass.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-ran:
		return nil
	}
}

func (d *Delegator) postTimer(id bass.SrcID, gen uint64) {
	d.post(func() {
		s := d.table.get(id)
		if s == nil {
			return
		}
		d.transition(s, slotEvent{kind: evTimerFired, gen: gen})
	})
}

// transition dispatches ev and publishes the result when it changed the
// receive state.
func (d *Delegator) transition(s *slot, ev slotEvent) error {
	before := s.state.Clone()
	wasSynced := s.phase == phaseSynced

	err := d.dispatch(s, ev)
	if err != nil {
		d.logger.Warnf("src %d: %v: %v", s.state.SrcID, ev.kind, err)
	}

	if !wasSynced && s.phase == phaseSynced {
		d.syncBIS(s, nil, true)
	}
	d.publish(s, before)
	return err
}

// publish notifies when s differs from before.
func (d *Delegator) publish(s *slot, before bass.ReceiveState) {
	if s.state.Equal(before) {
		return
	}
	d.notify(s)
}

func (d *Delegator) notify(s *slot) {
	d.logger.Debugf("notify %v", s.state)
	if d.notifier != nil {
		d.notifier.ReceiveStateChanged(s.state.Clone())
	}
	d.persist()
}

func (d *Delegator) publishRemoved(id bass.SrcID) {
	d.logger.Debugf("notify src %d removed", id)
	if d.notifier != nil {
		d.notifier.ReceiveStateRemoved(id)
	}
	d.persist()
}

func (d *Delegator) persist() {
	if d.cache == nil {
		return
	}
	if err := d.cache.Store(d.snapshots()); err != nil {
		d.logger.Errorf("can't store sources: %v", err)
	}
}

func (d *Delegator) snapshots() []bass.ReceiveState {
	active := d.table.active()
	out := make([]bass.ReceiveState, 0, len(active))
	for _, s := range active {
		out = append(out, s.state.Clone())
	}
	return out
}

// syncBIS tells the BIS handler about the slot's BIS membership. It does
// nothing unless the slot is synced and the membership changed or force is
// set.
func (d *Delegator) syncBIS(s *slot, previous []uint32, force bool) {
	if d.bis == nil || s.phase != phaseSynced {
		return
	}

	req := s.requestedBIS()
	if !force && equalMasks(previous, req) {
		return
	}
	if force && AllZero(req) {
		// nothing requested and nothing joined yet
		return
	}

	d.bis.SyncBIS(s.state.SrcID, Negotiate(req, nil), s.code)
}

func equalMasks(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d *Delegator) takeOrphan(t bass.SyncTarget) (orphan, bool) {
	for i, o := range d.orphans {
		if o.target.SID == t.SID && o.target.AddrType == t.AddrType && bass.SameAddr(o.target.Addr, t.Addr) {
			d.orphans = append(d.orphans[:i], d.orphans[i+1:]...)
			return o, true
		}
	}
	return orphan{}, false
}

// keepOrphan holds o for a later Add Source. A sync to a train some slot
// already covers would never be reported and is terminated instead, as is
// the oldest orphan once the list is full.
func (d *Delegator) keepOrphan(o orphan) {
	for _, s := range d.table.active() {
		if sameTarget(s, o.target.Addr, o.target.AddrType, o.target.SID) {
			d.logger.Infof("src %d already covers %v sid %d, dropping sync 0x%04x", s.state.SrcID, o.target.Addr, o.target.SID, o.handle)
			d.terminate(o.handle)
			return
		}
	}

	if len(d.orphans) >= maxOrphans {
		d.terminate(d.orphans[0].handle)
		d.orphans = d.orphans[1:]
	}
	d.orphans = append(d.orphans, o)
}

func (d *Delegator) terminate(handle uint16) {
	if err := d.ctrl.TerminateSync(handle); err != nil {
		d.logger.Warnf("terminate sync 0x%04x: %v", handle, err)
	}
}

// adopt gives a slot the sync of an orphan.
func (d *Delegator) adopt(s *slot, o orphan) {
	d.logger.Infof("src %d: adopting sync 0x%04x", s.state.SrcID, o.handle)
	d.pa.own(s, &paSync{handle: o.handle, interval: o.interval})
	s.phase = phaseSynced
	s.state.PASync = bass.PASyncSynced
}

func (d *Delegator) slotPending(path syncPath, match func(*slot) bool) *slot {
	for _, s := range d.table.active() {
		if s.attempt != nil && s.attempt.path == path && match(s) {
			return s
		}
	}
	return nil
}

func sameTarget(s *slot, a bass.Addr, t bass.AddrType, sid uint8) bool {
	return s.state.SID == sid && s.state.AddrType == t && bass.SameAddr(bass.NewAddr(s.state.Addr), a)
}

// HandleSyncEstablished implements bass.SyncEventHandler.
func (d *Delegator) HandleSyncEstablished(e bass.SyncEstablished) {
	d.post(func() {
		s := d.slotPending(pathDirect, func(s *slot) bool {
			return sameTarget(s, e.Addr, e.AddrType, e.SID)
		})

		switch {
		case s == nil && e.Status == 0:
			d.logger.Infof("unsolicited sync 0x%04x to %v sid %d", e.SyncHandle, e.Addr, e.SID)
			d.keepOrphan(orphan{
				target:   bass.SyncTarget{Addr: e.Addr, AddrType: e.AddrType, SID: e.SID},
				handle:   e.SyncHandle,
				interval: e.Interval,
			})
		case s == nil:
			d.logger.Debugf("sync to %v sid %d failed (0x%02x), no slot waiting", e.Addr, e.SID, e.Status)
		case e.Status != 0:
			d.logger.Infof("src %d: sync failed (0x%02x)", s.state.SrcID, e.Status)
			d.transition(s, slotEvent{kind: evSyncFailed})
		default:
			d.transition(s, slotEvent{kind: evSyncEstablished, syncHandle: e.SyncHandle, interval: e.Interval})
		}
	})
}

// HandlePASTReceived implements bass.SyncEventHandler.
func (d *Delegator) HandlePASTReceived(e bass.PASTReceived) {
	d.post(func() {
		onConn := func(s *slot) bool { return s.attempt.conn == e.ConnHandle }

		if e.Status != 0 && e.Addr == nil {
			// the subscription itself failed, nothing will arrive on conn
			d.logger.Infof("PAST on 0x%04x unavailable (0x%02x)", e.ConnHandle, e.Status)
			for _, s := range d.table.active() {
				if s.attempt != nil && s.attempt.path == pathPAST && onConn(s) {
					d.transition(s, slotEvent{kind: evPASTUnavailable})
				}
			}
			return
		}

		// the client names the src_id in the service data
		s := d.slotPending(pathPAST, func(s *slot) bool {
			return onConn(s) && s.state.SrcID == e.SrcID()
		})
		if s == nil {
			s = d.slotPending(pathPAST, func(s *slot) bool {
				return onConn(s) && sameTarget(s, e.Addr, e.AddrType, e.SID)
			})
		}

		switch {
		case s == nil && e.Status == 0:
			d.logger.Infof("unsolicited PAST 0x%04x to %v sid %d", e.SyncHandle, e.Addr, e.SID)
			d.keepOrphan(orphan{
				target:   bass.SyncTarget{Addr: e.Addr, AddrType: e.AddrType, SID: e.SID},
				handle:   e.SyncHandle,
				interval: e.Interval,
			})
		case s == nil:
			d.logger.Debugf("PAST on 0x%04x failed (0x%02x), no slot waiting", e.ConnHandle, e.Status)
		case e.Status != 0:
			d.transition(s, slotEvent{kind: evSyncFailed})
		default:
			d.transition(s, slotEvent{kind: evSyncEstablished, syncHandle: e.SyncHandle, interval: e.Interval})
		}
	})
}

// HandleSyncLost implements bass.SyncEventHandler.
func (d *Delegator) HandleSyncLost(e bass.SyncLost) {
	d.post(func() {
		if id, ok := d.pa.slotFor(e.SyncHandle); ok {
			if s := d.table.get(id); s != nil {
				d.transition(s, slotEvent{kind: evSyncLost})
				return
			}
		}
		for i, o := range d.orphans {
			if o.handle == e.SyncHandle {
				d.orphans = append(d.orphans[:i], d.orphans[i+1:]...)
				return
			}
		}
		d.logger.Debugf("sync 0x%04x lost, not tracked", e.SyncHandle)
	})
}

// HandleDisconnected implements bass.SyncEventHandler. Sources added over
// the connection are released; PAST attempts waiting on it fail.
func (d *Delegator) HandleDisconnected(connHandle uint16, reason uint8) {
	d.post(func() {
		d.logger.Infof("conn 0x%04x disconnected (0x%02x)", connHandle, reason)
		d.pa.dropConn(connHandle)

		for _, s := range d.table.active() {
			if s.owned(connHandle) {
				d.release(s)
				continue
			}
			if s.attempt != nil && s.attempt.path == pathPAST && s.attempt.conn == connHandle {
				d.transition(s, slotEvent{kind: evPASTUnavailable})
			}
		}
	})
}

// release tears down and frees s, then notifies its removal.
func (d *Delegator) release(s *slot) {
	id := s.state.SrcID
	wasSynced := s.phase == phaseSynced
	d.pa.cancel(s)
	if d.bis != nil && wasSynced && !AllZero(s.requestedBIS()) {
		d.bis.SyncBIS(id, Negotiate(make([]uint32, len(s.state.Subgroups)), nil), nil)
	}
	d.table.release(s)
	d.publishRemoved(id)
}
