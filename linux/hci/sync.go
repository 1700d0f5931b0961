package hci

import (
	"github.com/pkg/errors"
	"github.com/rigado/bass"
	"github.com/rigado/bass/linux/hci/cmd"
	"github.com/rigado/bass/linux/hci/evt"
)

var errQueueFull = errors.New("hci request queue full")

// request is one controller operation run by the request loop. fail turns
// an error into the event the delegator would otherwise wait for.
type request struct {
	name string
	run  func() error
	fail func(error)
}

// createReq is a create sync, pending at the controller or queued behind
// the one that is. The controller accepts a single create sync at a time.
type createReq struct {
	target    bass.SyncTarget
	skip      uint16
	timeout   uint16
	cancelled bool
}

func (h *HCI) syncEventHandler() bass.SyncEventHandler {
	h.muSync.Lock()
	defer h.muSync.Unlock()
	return h.syncHandler
}

// enqueue hands r to the request loop without blocking.
func (h *HCI) enqueue(r request) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}

	select {
	case h.requests <- r:
		return nil
	default:
		return errors.Wrap(errQueueFull, r.name)
	}
}

func (h *HCI) requestLoop() {
	for {
		select {
		case <-h.done:
			return
		case r := <-h.requests:
			if err := r.run(); err != nil {
				h.logger.Warnf("%v: %v", r.name, err)
				if r.fail != nil {
					r.fail(err)
				}
			}
		}
	}
}

// CreateSync implements bass.Controller. Requests beyond the one pending at
// the controller are queued and issued in order.
func (h *HCI) CreateSync(t bass.SyncTarget, skip, timeout uint16) error {
	h.muSync.Lock()
	defer h.muSync.Unlock()

	c := createReq{target: t, skip: skip, timeout: timeout}
	if h.creating != nil {
		h.logger.Debugf("queueing create sync %v/%d behind %v/%d", t.Addr, t.SID, h.creating.target.Addr, h.creating.target.SID)
		h.createQueue = append(h.createQueue, c)
		return nil
	}

	if err := h.issueCreate(c); err != nil {
		return err
	}
	h.creating = &c
	return nil
}

// issueCreate is called with muSync held.
func (h *HCI) issueCreate(c createReq) error {
	return h.enqueue(request{
		name: "create sync",
		run: func() error {
			return h.Send(&cmd.LEPeriodicAdvertisingCreateSync{
				AdvertisingSID:     c.target.SID,
				AdvertiserAddrType: uint8(c.target.AddrType),
				AdvertiserAddr:     bass.HCIBytes(c.target.Addr),
				Skip:               c.skip,
				SyncTimeout:        c.timeout,
			}, nil)
		},
		fail: func(err error) {
			h.finishCreate(c.target)
			if sh := h.syncEventHandler(); sh != nil {
				sh.HandleSyncEstablished(bass.SyncEstablished{
					Status:   statusOf(err),
					SID:      c.target.SID,
					Addr:     c.target.Addr,
					AddrType: c.target.AddrType,
				})
			}
		},
	})
}

// finishCreate retires the pending create sync when it targets t and
// issues the next queued one. It reports whether the pending one had been
// cancelled.
func (h *HCI) finishCreate(t bass.SyncTarget) (cancelled bool) {
	h.muSync.Lock()
	defer h.muSync.Unlock()

	if h.creating == nil || !sameTarget(h.creating.target, t) {
		return false
	}
	cancelled = h.creating.cancelled
	h.creating = nil

	for len(h.createQueue) > 0 {
		c := h.createQueue[0]
		h.createQueue = h.createQueue[1:]
		if err := h.issueCreate(c); err != nil {
			h.logger.Warnf("can't issue queued create sync %v/%d: %v", c.target.Addr, c.target.SID, err)
			continue
		}
		h.creating = &c
		break
	}
	return cancelled
}

// CancelCreateSync implements bass.Controller. A queued request is dropped;
// the pending one is cancelled at the controller, which answers with a
// sync established event that is not forwarded.
func (h *HCI) CancelCreateSync(t bass.SyncTarget) error {
	h.muSync.Lock()
	defer h.muSync.Unlock()

	for i, c := range h.createQueue {
		if sameTarget(c.target, t) {
			h.createQueue = append(h.createQueue[:i], h.createQueue[i+1:]...)
			return nil
		}
	}

	if h.creating == nil || !sameTarget(h.creating.target, t) {
		return errors.Errorf("no create sync for %v/%d", t.Addr, t.SID)
	}
	h.creating.cancelled = true

	return h.enqueue(request{
		name: "create sync cancel",
		run: func() error {
			return h.Send(&cmd.LEPeriodicAdvertisingCreateSyncCancel{}, nil)
		},
		fail: func(err error) {
			// nothing pending at the controller, no event will follow
			h.finishCreate(t)
		},
	})
}

// TerminateSync implements bass.Controller.
func (h *HCI) TerminateSync(syncHandle uint16) error {
	return h.enqueue(request{
		name: "terminate sync",
		run: func() error {
			return h.Send(&cmd.LEPeriodicAdvertisingTerminateSync{SyncHandle: syncHandle}, nil)
		},
	})
}

// SubscribePAST implements bass.Controller by enabling sync transfer
// reception on connHandle. A failure is reported as a PAST received event
// without an advertiser.
func (h *HCI) SubscribePAST(connHandle, skip, timeout uint16) error {
	return h.enqueue(request{
		name: "subscribe PAST",
		run: func() error {
			return h.setPAST(connHandle, cmd.PASTModeReportsFilteredDups, skip, timeout)
		},
		fail: func(err error) {
			if sh := h.syncEventHandler(); sh != nil {
				sh.HandlePASTReceived(bass.PASTReceived{
					Status:     statusOf(err),
					ConnHandle: connHandle,
				})
			}
		},
	})
}

// UnsubscribePAST implements bass.Controller.
func (h *HCI) UnsubscribePAST(connHandle uint16) error {
	return h.enqueue(request{
		name: "unsubscribe PAST",
		run: func() error {
			return h.setPAST(connHandle, cmd.PASTModeOff, 0, pastTimeoutMin)
		},
	})
}

func (h *HCI) setPAST(connHandle uint16, mode uint8, skip, timeout uint16) error {
	rp := cmd.LESetPeriodicAdvertisingSyncTransferParamsRP{}
	err := h.Send(&cmd.LESetPeriodicAdvertisingSyncTransferParams{
		ConnectionHandle: connHandle,
		Mode:             mode,
		Skip:             skip,
		SyncTimeout:      timeout,
	}, &rp)
	if err != nil {
		return err
	}
	if rp.ConnectionHandle != connHandle {
		return errors.Errorf("PAST params for 0x%04x answered for 0x%04x", connHandle, rp.ConnectionHandle)
	}
	return nil
}

func sameTarget(a, b bass.SyncTarget) bool {
	return a.SID == b.SID && a.AddrType == b.AddrType && bass.SameAddr(a.Addr, b.Addr)
}

func (h *HCI) handleLEPeriodicAdvertisingSyncEstablished(b []byte) error {
	e := evt.LEPeriodicAdvertisingSyncEstablished(b)

	st, err := e.StatusWErr()
	if err != nil {
		return errors.Wrap(err, "sync established status")
	}
	sh, err := e.SyncHandleWErr()
	if err != nil {
		return errors.Wrap(err, "sync established handle")
	}
	sid, err := e.AdvertisingSIDWErr()
	if err != nil {
		return errors.Wrap(err, "sync established sid")
	}
	at, err := e.AdvertiserAddressTypeWErr()
	if err != nil {
		return errors.Wrap(err, "sync established addr type")
	}
	a, err := e.AdvertiserAddressWErr()
	if err != nil {
		return errors.Wrap(err, "sync established addr")
	}
	iv, err := e.PeriodicAdvertisingIntervalWErr()
	if err != nil {
		return errors.Wrap(err, "sync established interval")
	}

	se := bass.SyncEstablished{
		Status:     st,
		SyncHandle: sh,
		SID:        sid,
		Addr:       bass.AddrFromHCI(a),
		AddrType:   bass.AddrType(at),
		Interval:   iv,
	}
	h.logger.Debugf("sync established: %+v", se)

	cancelled := h.finishCreate(bass.SyncTarget{Addr: se.Addr, AddrType: se.AddrType, SID: se.SID})
	if cancelled && st != 0 {
		return nil
	}

	if handler := h.syncEventHandler(); handler != nil {
		handler.HandleSyncEstablished(se)
	}
	return nil
}

func (h *HCI) handleLEPeriodicAdvertisingSyncLost(b []byte) error {
	e := evt.LEPeriodicAdvertisingSyncLost(b)
	sh, err := e.SyncHandleWErr()
	if err != nil {
		return errors.Wrap(err, "sync lost handle")
	}

	h.logger.Debugf("sync 0x%04x lost", sh)
	if handler := h.syncEventHandler(); handler != nil {
		handler.HandleSyncLost(bass.SyncLost{SyncHandle: sh})
	}
	return nil
}

func (h *HCI) handleLEPeriodicAdvertisingSyncTransferReceived(b []byte) error {
	e := evt.LEPeriodicAdvertisingSyncTransferReceived(b)

	st, err := e.StatusWErr()
	if err != nil {
		return errors.Wrap(err, "PAST status")
	}
	ch, err := e.ConnectionHandleWErr()
	if err != nil {
		return errors.Wrap(err, "PAST conn handle")
	}
	sd, err := e.ServiceDataWErr()
	if err != nil {
		return errors.Wrap(err, "PAST service data")
	}
	sh, err := e.SyncHandleWErr()
	if err != nil {
		return errors.Wrap(err, "PAST sync handle")
	}
	sid, err := e.AdvertisingSIDWErr()
	if err != nil {
		return errors.Wrap(err, "PAST sid")
	}
	at, err := e.AdvertiserAddressTypeWErr()
	if err != nil {
		return errors.Wrap(err, "PAST addr type")
	}
	a, err := e.AdvertiserAddressWErr()
	if err != nil {
		return errors.Wrap(err, "PAST addr")
	}
	iv, err := e.PeriodicAdvertisingIntervalWErr()
	if err != nil {
		return errors.Wrap(err, "PAST interval")
	}

	pr := bass.PASTReceived{
		Status:      st,
		ConnHandle:  ch,
		ServiceData: sd,
		SyncHandle:  sh,
		SID:         sid,
		Addr:        bass.AddrFromHCI(a),
		AddrType:    bass.AddrType(at),
		Interval:    iv,
	}
	h.logger.Debugf("PAST received: %+v", pr)

	if handler := h.syncEventHandler(); handler != nil {
		handler.HandlePASTReceived(pr)
	}
	return nil
}

var _ bass.Controller = (*HCI)(nil)
