package delegator

import (
	"github.com/rigado/bass"
)

// table is the fixed capacity pool of receive state slots. Slots live in an
// arena; src_ids are handed out from a wrapping counter so a released id is
// not immediately reused.
type table struct {
	slots  []*slot
	nextID bass.SrcID
}

func newTable(n int) *table {
	t := &table{slots: make([]*slot, n)}
	for i := range t.slots {
		t.slots[i] = &slot{}
	}
	return t
}

func (t *table) capacity() int {
	return len(t.slots)
}

func (t *table) len() int {
	n := 0
	for _, s := range t.slots {
		if s.inUse {
			n++
		}
	}
	return n
}

// get returns the active slot for id, or nil.
func (t *table) get(id bass.SrcID) *slot {
	for _, s := range t.slots {
		if s.inUse && s.state.SrcID == id {
			return s
		}
	}
	return nil
}

// active returns the active slots in arena order.
func (t *table) active() []*slot {
	out := make([]*slot, 0, len(t.slots))
	for _, s := range t.slots {
		if s.inUse {
			out = append(out, s)
		}
	}
	return out
}

// alloc claims a free slot and assigns it a src_id. preferred is used when
// it is not taken, which lets restored sources keep their id.
func (t *table) alloc(preferred *bass.SrcID) (*slot, error) {
	var free *slot
	for _, s := range t.slots {
		if !s.inUse {
			free = s
			break
		}
	}
	if free == nil {
		return nil, bass.ErrTableFull
	}

	var id bass.SrcID
	if preferred != nil && t.get(*preferred) == nil {
		id = *preferred
	} else {
		id = t.freeID()
	}

	*free = slot{inUse: true}
	free.state.SrcID = id
	return free, nil
}

// freeID returns the next src_id not held by an active slot. The table never
// holds more than 256 slots, so one always exists when a slot is free.
func (t *table) freeID() bass.SrcID {
	for {
		id := t.nextID
		t.nextID++
		if t.get(id) == nil {
			return id
		}
	}
}

// release returns s to the pool. Callers cancel its sync first.
func (t *table) release(s *slot) {
	*s = slot{}
}
