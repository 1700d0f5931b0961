package delegator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

// run executes f on the loop and returns its result. The reply channel is
// buffered, so f never blocks on a caller that gave up.
func run[T any](ctx context.Context, d *Delegator, f func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	var zero T
	reply := make(chan result, 1)
	select {
	case <-d.done:
		return zero, bass.ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	case d.events <- func() {
		v, err := f()
		reply <- result{v, err}
	}:
	}

	select {
	case <-d.done:
		return zero, bass.ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-reply:
		return r.v, r.err
	}
}

func exec(ctx context.Context, d *Delegator, f func() error) error {
	_, err := run(ctx, d, func() (struct{}, error) {
		return struct{}{}, f()
	})
	return err
}

// AddSource handles an Add Source operation written by conn. On success the
// new src_id is returned and one notification carries the initial state.
func (d *Delegator) AddSource(ctx context.Context, conn bass.Conn, p bass.SourceParams) (bass.SrcID, error) {
	if err := p.Validate(); err != nil {
		return 0, errors.Wrap(err, "add source")
	}
	return run(ctx, d, func() (bass.SrcID, error) {
		if err := d.authorize(bass.AuthRequest{Op: bass.OpAddSource, Conn: conn, Source: &p}); err != nil {
			return 0, err
		}
		return d.addSource(conn, p, nil)
	})
}

// AddLocalSource adds a source on behalf of the local application. No
// authorization is consulted and no connection owns the result.
func (d *Delegator) AddLocalSource(ctx context.Context, p bass.SourceParams) (bass.SrcID, error) {
	if err := p.Validate(); err != nil {
		return 0, errors.Wrap(err, "add local source")
	}
	return run(ctx, d, func() (bass.SrcID, error) {
		return d.addSource(nil, p, nil)
	})
}

// ModifySource handles a Modify Source operation written by conn. The
// subgroup count must match the existing receive state.
func (d *Delegator) ModifySource(ctx context.Context, conn bass.Conn, id bass.SrcID, p bass.ModifyParams) error {
	// the broadcast encryption state is not the client's to write
	p.Encryption = nil
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "modify source")
	}
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		if len(p.Subgroups) != len(s.state.Subgroups) {
			return errors.Wrapf(bass.ErrInvalidParam, "src %d has %d subgroups, got %d", id, len(s.state.Subgroups), len(p.Subgroups))
		}
		if err := d.authorize(bass.AuthRequest{Op: bass.OpModifySource, Conn: conn, SrcID: id}); err != nil {
			return err
		}
		d.modifySource(s, conn, p)
		return nil
	})
}

// UpdateSource modifies a source on behalf of the local application. Unlike
// ModifySource it may also set the encryption state.
func (d *Delegator) UpdateSource(ctx context.Context, id bass.SrcID, p bass.ModifyParams) error {
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "update source")
	}
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		if len(p.Subgroups) != len(s.state.Subgroups) {
			return errors.Wrapf(bass.ErrInvalidParam, "src %d has %d subgroups, got %d", id, len(s.state.Subgroups), len(p.Subgroups))
		}
		d.modifySource(s, nil, p)
		return nil
	})
}

// RemoveSource handles a Remove Source operation written by conn. A rejected
// remove leaves the slot and its sync untouched.
func (d *Delegator) RemoveSource(ctx context.Context, conn bass.Conn, id bass.SrcID) error {
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		if err := d.authorize(bass.AuthRequest{Op: bass.OpRemoveSource, Conn: conn, SrcID: id}); err != nil {
			return err
		}
		d.release(s)
		return nil
	})
}

// RemoveLocalSource removes a source without authorization.
func (d *Delegator) RemoveLocalSource(ctx context.Context, id bass.SrcID) error {
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		d.release(s)
		return nil
	})
}

// SetBroadcastCode handles a Set Broadcast_Code operation. A source waiting
// for a code, or holding a bad one, moves to Decrypting.
func (d *Delegator) SetBroadcastCode(ctx context.Context, conn bass.Conn, id bass.SrcID, code bass.BroadcastCode) error {
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		if err := d.authorize(bass.AuthRequest{Op: bass.OpBroadcastCode, Conn: conn, SrcID: id}); err != nil {
			return err
		}

		before := s.state.Clone()
		changed := s.code == nil || *s.code != code
		c := code
		s.code = &c

		switch s.state.Encryption {
		case bass.BroadcastCodeRequired, bass.BadCode:
			s.state.Encryption = bass.Decrypting
		}
		if changed {
			d.syncBIS(s, nil, true)
		}
		d.publish(s, before)
		return nil
	})
}

// SetBISSyncState records the BIS bitmaps the sink actually synced to, one
// per subgroup.
func (d *Delegator) SetBISSyncState(ctx context.Context, id bass.SrcID, states []uint32) error {
	return exec(ctx, d, func() error {
		s := d.table.get(id)
		if s == nil {
			return bass.ErrUnknownSource
		}
		if len(states) != len(s.state.Subgroups) {
			return errors.Wrapf(bass.ErrInvalidParam, "src %d has %d subgroups, got %d", id, len(s.state.Subgroups), len(states))
		}

		before := s.state.Clone()
		for i, st := range states {
			s.state.Subgroups[i].BISSyncState = st
		}
		d.publish(s, before)
		return nil
	})
}

// ReceiveState returns a snapshot of one receive state.
func (d *Delegator) ReceiveState(ctx context.Context, id bass.SrcID) (bass.ReceiveState, error) {
	return run(ctx, d, func() (bass.ReceiveState, error) {
		s := d.table.get(id)
		if s == nil {
			return bass.ReceiveState{}, bass.ErrUnknownSource
		}
		return s.state.Clone(), nil
	})
}

// ReceiveStates returns snapshots of every active receive state.
func (d *Delegator) ReceiveStates(ctx context.Context) ([]bass.ReceiveState, error) {
	return run(ctx, d, func() ([]bass.ReceiveState, error) {
		return d.snapshots(), nil
	})
}

// Restore re-adds the sources held by the source cache as local, unsynced
// sources. Cached src_ids are kept where possible. A cached source already
// present in the table, same advertiser, SID and Broadcast_ID, is skipped,
// so restoring again is harmless. Start restores once when a cache is set.
func (d *Delegator) Restore(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	states, err := d.cache.Load()
	if err != nil {
		return errors.Wrap(err, "can't load sources")
	}

	return exec(ctx, d, func() error {
		for _, rs := range states {
			if d.present(rs) {
				d.logger.Debugf("src %d already present, not restored", rs.SrcID)
				continue
			}
			s, err := d.table.alloc(&rs.SrcID)
			if err != nil {
				d.logger.Warnf("can't restore %v: %v", rs, err)
				continue
			}
			id := s.state.SrcID
			s.state = rs.Clone()
			s.state.SrcID = id
			s.state.PASync = bass.PASyncNotSynced
			if s.state.Encryption != bass.NotEncrypted {
				// the code is never cached
				s.state.Encryption = bass.BroadcastCodeRequired
			}
			for i := range s.state.Subgroups {
				s.state.Subgroups[i].BISSyncState = 0
			}
			d.logger.Infof("restored %v", s.state)
			d.notify(s)
		}
		return nil
	})
}

func (d *Delegator) present(rs bass.ReceiveState) bool {
	for _, s := range d.table.active() {
		if s.state.BroadcastID == rs.BroadcastID && sameTarget(s, bass.NewAddr(rs.Addr), rs.AddrType, rs.SID) {
			return true
		}
	}
	return false
}

// authorize consults the policy and completes a veto with the operation
// it applies to.
func (d *Delegator) authorize(r bass.AuthRequest) error {
	err := d.auth.Authorize(r)
	if err == nil {
		return nil
	}
	if re, ok := errors.Cause(err).(*bass.RejectError); ok {
		out := *re
		out.Op = r.Op
		out.SrcID = r.SrcID
		d.logger.Infof("%v", &out)
		return &out
	}
	return errors.Wrapf(err, "%v not authorized", r.Op)
}

func (d *Delegator) addSource(conn bass.Conn, p bass.SourceParams, preferred *bass.SrcID) (bass.SrcID, error) {
	s, err := d.table.alloc(preferred)
	if err != nil {
		return 0, err
	}

	s.owner = conn
	s.state = bass.ReceiveState{
		SrcID:       s.state.SrcID,
		Addr:        p.Addr.String(),
		AddrType:    p.AddrType,
		SID:         p.SID,
		BroadcastID: p.BroadcastID,
		PASync:      bass.PASyncNotSynced,
		Encryption:  bass.NotEncrypted,
		Subgroups:   make([]bass.Subgroup, len(p.Subgroups)),
	}
	for i, sg := range p.Subgroups {
		s.state.Subgroups[i] = bass.Subgroup{
			BISSync:  sg.BISSync,
			Metadata: append([]byte(nil), sg.Metadata...),
		}
	}
	d.logger.Infof("added %v", s.state)

	if p.PASync != bass.NoSync {
		if err := d.dispatch(s, syncRequest(p.PASync, p.PAInterval, conn)); err != nil {
			d.logger.Warnf("src %d: %v", s.state.SrcID, err)
		}
		if s.phase == phaseSynced {
			d.syncBIS(s, nil, true)
		}
	}

	d.notify(s)
	return s.state.SrcID, nil
}

func (d *Delegator) modifySource(s *slot, conn bass.Conn, p bass.ModifyParams) {
	before := s.state.Clone()
	prevBIS := s.requestedBIS()
	wasSynced := s.phase == phaseSynced

	for i, sg := range p.Subgroups {
		s.state.Subgroups[i].BISSync = sg.BISSync
		s.state.Subgroups[i].Metadata = append([]byte(nil), sg.Metadata...)
	}
	if p.Encryption != nil {
		s.state.Encryption = *p.Encryption
	}

	var err error
	switch {
	case p.PASync == bass.NoSync:
		if s.phase != phaseIdle || s.state.PASync != bass.PASyncNotSynced {
			err = d.dispatch(s, slotEvent{kind: evTerminate})
		}
	case s.phase == phaseIdle:
		if conn == nil {
			conn = s.owner
		}
		err = d.dispatch(s, syncRequest(p.PASync, p.PAInterval, conn))
	}
	if err != nil {
		d.logger.Warnf("src %d: %v", s.state.SrcID, err)
	}

	switch {
	case wasSynced && s.phase != phaseSynced:
		if d.bis != nil && !AllZero(prevBIS) {
			d.bis.SyncBIS(s.state.SrcID, Negotiate(make([]uint32, len(prevBIS)), nil), nil)
		}
	case !wasSynced && s.phase == phaseSynced:
		d.syncBIS(s, nil, true)
	default:
		d.syncBIS(s, prevBIS, false)
	}

	d.publish(s, before)
}

// syncRequest builds the sync request for a PA_Sync parameter. A PAST
// request without a connection falls back to a direct sync.
func syncRequest(pa bass.PASyncRequest, interval uint16, conn bass.Conn) slotEvent {
	ev := slotEvent{kind: evRequestSync, path: pathDirect, interval: interval}
	if pa == bass.SyncPAST && conn != nil {
		ev.path = pathPAST
		ev.conn = conn
	}
	return ev
}
