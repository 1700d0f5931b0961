package delegator

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

// syncPhase is the internal sync state of a slot. The published
// PA_Sync_State is derived from it but not identical: a direct attempt is
// not published until the controller confirms it.
type syncPhase uint8

const (
	phaseIdle syncPhase = iota
	phaseDirectPending
	phasePASTPending
	phaseSynced
)

func (p syncPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseDirectPending:
		return "direct pending"
	case phasePASTPending:
		return "PAST pending"
	case phaseSynced:
		return "synced"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

type syncPath uint8

const (
	pathDirect syncPath = iota
	pathPAST
)

func (p syncPath) String() string {
	if p == pathPAST {
		return "PAST"
	}
	return "direct"
}

type slotEventKind uint8

const (
	evRequestSync slotEventKind = iota
	evSyncEstablished
	evSyncFailed
	evSyncLost
	evTerminate
	evTimerFired
	evPASTUnavailable
)

func (k slotEventKind) String() string {
	switch k {
	case evRequestSync:
		return "request sync"
	case evSyncEstablished:
		return "sync established"
	case evSyncFailed:
		return "sync failed"
	case evSyncLost:
		return "sync lost"
	case evTerminate:
		return "terminate"
	case evTimerFired:
		return "timer fired"
	case evPASTUnavailable:
		return "PAST unavailable"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// slotEvent is the input of the slot state machine. Only the fields of
// the given kind are meaningful.
type slotEvent struct {
	kind slotEventKind

	// evRequestSync
	path     syncPath
	interval uint16
	conn     bass.Conn

	// evSyncEstablished
	syncHandle uint16

	// evTimerFired
	gen uint64
}

// paSync is an established PA sync exclusively owned by one slot.
type paSync struct {
	handle   uint16
	interval uint16
}

// syncAttempt is the single outstanding sync attempt of a slot.
type syncAttempt struct {
	gen    uint64
	path   syncPath
	target bass.SyncTarget
	conn   uint16
	timer  bass.Timer
}

type slot struct {
	inUse bool
	state bass.ReceiveState

	// owner is the connection that added the source; nil for sources added
	// locally or restored from the cache.
	owner bass.Conn

	phase   syncPhase
	attempt *syncAttempt
	sync    *paSync

	code *bass.BroadcastCode
}

func (s *slot) target() bass.SyncTarget {
	return bass.SyncTarget{
		Addr:     bass.NewAddr(s.state.Addr),
		AddrType: s.state.AddrType,
		SID:      s.state.SID,
	}
}

func (s *slot) owned(connHandle uint16) bool {
	return s.owner != nil && s.owner.Handle() == connHandle
}

func (s *slot) requestedBIS() []uint32 {
	out := make([]uint32, len(s.state.Subgroups))
	for i, sg := range s.state.Subgroups {
		out[i] = sg.BISSync
	}
	return out
}

// dispatch applies ev to s. It is the only place the sync phase and the
// published PA_Sync_State change. The caller notifies when the published
// state differs afterwards.
func (d *Delegator) dispatch(s *slot, ev slotEvent) error {
	d.logger.Debugf("src %d: %v in %v (published %v)", s.state.SrcID, ev.kind, s.phase, s.state.PASync)

	switch ev.kind {
	case evRequestSync:
		switch s.phase {
		case phaseDirectPending, phasePASTPending, phaseSynced:
			return bass.ErrAlreadySyncing
		}

		if o, ok := d.takeOrphan(s.target()); ok {
			d.adopt(s, o)
			return nil
		}

		timeout := bass.ControllerSyncTimeout(ev.interval, d.ratio)
		if ev.path == pathPAST {
			if err := d.pa.requestPAST(s, ev.conn.Handle(), d.skip, timeout); err != nil {
				s.state.PASync = bass.PASyncNoPAST
				return errors.Wrap(err, "can't subscribe PAST")
			}
			s.phase = phasePASTPending
			s.state.PASync = bass.PASyncInfoRequest
			return nil
		}

		if err := d.pa.requestDirect(s, d.skip, timeout); err != nil {
			s.state.PASync = bass.PASyncFailed
			return errors.Wrap(err, "can't create sync")
		}
		s.phase = phaseDirectPending
		return nil

	case evSyncEstablished:
		switch s.phase {
		case phaseDirectPending, phasePASTPending:
		default:
			return errors.Errorf("sync established in phase %v", s.phase)
		}
		// stop the watchdog before anything else
		d.pa.finish(s)
		d.pa.own(s, &paSync{handle: ev.syncHandle, interval: ev.interval})
		s.phase = phaseSynced
		s.state.PASync = bass.PASyncSynced
		return nil

	case evSyncFailed:
		switch s.phase {
		case phaseDirectPending, phasePASTPending:
		default:
			return nil
		}
		// the controller gave up, nothing left to cancel there
		d.pa.finish(s)
		s.phase = phaseIdle
		s.state.PASync = bass.PASyncFailed
		return nil

	case evSyncLost, evTerminate:
		// losing the handle forces not synced whatever the timer did
		if ev.kind == evSyncLost {
			d.pa.lost(s)
		}
		d.pa.cancel(s)
		s.phase = phaseIdle
		s.state.PASync = bass.PASyncNotSynced
		return nil

	case evTimerFired:
		if s.attempt == nil || s.attempt.gen != ev.gen {
			// cancelled or superseded attempt
			return nil
		}
		path := s.attempt.path
		d.pa.cancel(s)
		s.phase = phaseIdle
		if path == pathPAST {
			s.state.PASync = bass.PASyncNoPAST
		} else {
			s.state.PASync = bass.PASyncFailed
		}
		return nil

	case evPASTUnavailable:
		if s.phase != phasePASTPending {
			return nil
		}
		d.pa.cancel(s)
		s.phase = phaseIdle
		s.state.PASync = bass.PASyncNoPAST
		return nil
	}

	return errors.Errorf("unhandled event %v", ev.kind)
}
