package delegator

import (
	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

// maxRecvStates is the number of distinct src_ids.
const maxRecvStates = 256

// maxPASyncSkip is the largest skip the controller accepts.
const maxPASyncSkip = 0x01F3

// SetRecvStateCount sets the capacity of the receive state table.
func (d *Delegator) SetRecvStateCount(n int) error {
	if n < 1 || n > maxRecvStates {
		return errors.Errorf("receive state count %d out of range [1, %d]", n, maxRecvStates)
	}
	if d.table != nil {
		return errors.New("receive state count can't change after New")
	}
	d.recvStateCount = n
	return nil
}

// SetPASyncSkip sets the skip passed to the controller on sync.
func (d *Delegator) SetPASyncSkip(skip uint16) error {
	if skip > maxPASyncSkip {
		return errors.Errorf("skip 0x%04x out of range", skip)
	}
	d.skip = skip
	return nil
}

// SetSyncTimeoutRatio sets the PA interval to sync timeout ratio.
func (d *Delegator) SetSyncTimeoutRatio(ratio int) error {
	if ratio < 1 {
		return errors.Errorf("invalid sync timeout ratio %d", ratio)
	}
	d.ratio = ratio
	return nil
}

// SetController sets the controller PA sync requests are issued to.
func (d *Delegator) SetController(c bass.Controller) error {
	if d.pa != nil {
		return errors.New("controller can't change after New")
	}
	d.ctrl = c
	return nil
}

// SetNotifier sets the receiver of receive state changes.
func (d *Delegator) SetNotifier(n bass.Notifier) error {
	d.notifier = n
	return nil
}

// SetAuthorizer sets the control point policy. nil accepts everything.
func (d *Delegator) SetAuthorizer(a bass.Authorizer) error {
	if a == nil {
		a = AllowAll()
	}
	d.auth = a
	return nil
}

// SetBISHandler sets the receiver of BIS sync decisions.
func (d *Delegator) SetBISHandler(h bass.BISHandler) error {
	d.bis = h
	return nil
}

// SetSourceCache sets the store receive states are persisted to.
func (d *Delegator) SetSourceCache(c bass.SourceCache) error {
	d.cache = c
	return nil
}

// SetClock sets the clock used for sync watchdogs.
func (d *Delegator) SetClock(c bass.Clock) error {
	if c == nil {
		return errors.New("nil clock")
	}
	if d.pa != nil {
		return errors.New("clock can't change after New")
	}
	d.clock = c
	return nil
}

// SetLogger sets the logger.
func (d *Delegator) SetLogger(l bass.Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	d.logger = l
	if d.pa != nil {
		d.pa.log = l
	}
	return nil
}
