package delegator

import (
	"github.com/rigado/bass"
)

// paSyncManager owns the controller side of every slot's sync: the pending
// attempt with its watchdog, and the established sync handle. It holds no
// protocol state.
type paSyncManager struct {
	ctrl  bass.Controller
	clock bass.Clock
	log   bass.Logger

	// fire posts a timer expiry into the delegator loop
	fire func(id bass.SrcID, gen uint64)

	gen      uint64
	byHandle map[uint16]bass.SrcID
	pastSubs map[uint16]int
}

func newPASyncManager(ctrl bass.Controller, clock bass.Clock, log bass.Logger, fire func(bass.SrcID, uint64)) *paSyncManager {
	return &paSyncManager{
		ctrl:     ctrl,
		clock:    clock,
		log:      log,
		fire:     fire,
		byHandle: make(map[uint16]bass.SrcID),
		pastSubs: make(map[uint16]int),
	}
}

// requestDirect issues a create sync for the slot's source and arms the
// watchdog.
func (m *paSyncManager) requestDirect(s *slot, skip, timeout uint16) error {
	if s.attempt != nil || s.sync != nil {
		return bass.ErrAlreadySyncing
	}

	t := s.target()
	if err := m.ctrl.CreateSync(t, skip, timeout); err != nil {
		return err
	}

	s.attempt = m.arm(s.state.SrcID, pathDirect, timeout)
	s.attempt.target = t
	return nil
}

// requestPAST subscribes to PAST on conn and arms the watchdog. The
// controller subscription is shared by every slot waiting on conn.
func (m *paSyncManager) requestPAST(s *slot, conn uint16, skip, timeout uint16) error {
	if s.attempt != nil || s.sync != nil {
		return bass.ErrAlreadySyncing
	}

	if m.pastSubs[conn] == 0 {
		if err := m.ctrl.SubscribePAST(conn, skip, timeout); err != nil {
			return err
		}
	}
	m.pastSubs[conn]++

	s.attempt = m.arm(s.state.SrcID, pathPAST, timeout)
	s.attempt.target = s.target()
	s.attempt.conn = conn
	return nil
}

func (m *paSyncManager) arm(id bass.SrcID, path syncPath, timeout uint16) *syncAttempt {
	m.gen++
	gen := m.gen
	a := &syncAttempt{gen: gen, path: path}
	a.timer = m.clock.AfterFunc(bass.WatchdogTimeout(timeout), func() {
		m.fire(id, gen)
	})
	return a
}

// finish ends the slot's attempt after the controller confirmed the sync.
// The controller request is complete, so only the local side is torn down.
func (m *paSyncManager) finish(s *slot) {
	a := s.attempt
	if a == nil {
		return
	}
	s.attempt = nil
	a.timer.Stop()
	if a.path == pathPAST {
		m.unsubscribe(a.conn)
	}
}

// own hands an established sync to the slot.
func (m *paSyncManager) own(s *slot, ps *paSync) {
	s.sync = ps
	m.byHandle[ps.handle] = s.state.SrcID
}

// cancel tears down whatever the slot owns. It is safe in any state and
// safe to call twice; the second call finds nothing to release.
func (m *paSyncManager) cancel(s *slot) {
	if a := s.attempt; a != nil {
		s.attempt = nil
		a.timer.Stop()

		switch a.path {
		case pathDirect:
			if err := m.ctrl.CancelCreateSync(a.target); err != nil {
				m.log.Warnf("src %d: cancel create sync: %v", s.state.SrcID, err)
			}
		case pathPAST:
			m.unsubscribe(a.conn)
		}
	}

	if ps := s.sync; ps != nil {
		s.sync = nil
		delete(m.byHandle, ps.handle)
		if err := m.ctrl.TerminateSync(ps.handle); err != nil {
			m.log.Warnf("src %d: terminate sync 0x%04x: %v", s.state.SrcID, ps.handle, err)
		}
	}
}

// lost forgets a sync handle the controller already dropped.
func (m *paSyncManager) lost(s *slot) {
	if ps := s.sync; ps != nil {
		s.sync = nil
		delete(m.byHandle, ps.handle)
	}
}

func (m *paSyncManager) unsubscribe(conn uint16) {
	n := m.pastSubs[conn]
	switch {
	case n > 1:
		m.pastSubs[conn] = n - 1
	case n == 1:
		delete(m.pastSubs, conn)
		if err := m.ctrl.UnsubscribePAST(conn); err != nil {
			m.log.Warnf("unsubscribe PAST on 0x%04x: %v", conn, err)
		}
	}
}

// dropConn forgets the PAST subscription of a disconnected link without
// talking to the controller.
func (m *paSyncManager) dropConn(conn uint16) {
	delete(m.pastSubs, conn)
}

func (m *paSyncManager) slotFor(handle uint16) (bass.SrcID, bool) {
	id, ok := m.byHandle[handle]
	return id, ok
}
