package bass

import (
	"bytes"
	"fmt"
)

// SrcID identifies a receive state slot.
type SrcID uint8

// PASyncState is the PA_Sync_State field of a receive state.
type PASyncState uint8

const (
	PASyncNotSynced   PASyncState = 0x00
	PASyncInfoRequest PASyncState = 0x01
	PASyncSynced      PASyncState = 0x02
	PASyncFailed      PASyncState = 0x03
	PASyncNoPAST      PASyncState = 0x04
)

func (s PASyncState) String() string {
	switch s {
	case PASyncNotSynced:
		return "not synced"
	case PASyncInfoRequest:
		return "info request"
	case PASyncSynced:
		return "synced"
	case PASyncFailed:
		return "failed"
	case PASyncNoPAST:
		return "no PAST"
	default:
		return fmt.Sprintf("paSyncState(0x%02x)", uint8(s))
	}
}

// IsSynced reports whether the state counts as synced on the wire.
// Failed and NoPAST both read as not synced.
func (s PASyncState) IsSynced() bool {
	return s == PASyncSynced
}

// EncryptionState is the BIG_Encryption field of a receive state.
type EncryptionState uint8

const (
	NotEncrypted          EncryptionState = 0x00
	BroadcastCodeRequired EncryptionState = 0x01
	Decrypting            EncryptionState = 0x02
	BadCode               EncryptionState = 0x03
)

func (e EncryptionState) String() string {
	switch e {
	case NotEncrypted:
		return "not encrypted"
	case BroadcastCodeRequired:
		return "broadcast code required"
	case Decrypting:
		return "decrypting"
	case BadCode:
		return "bad code"
	default:
		return fmt.Sprintf("encryption(0x%02x)", uint8(e))
	}
}

// PASyncRequest is the PA_Sync parameter of Add Source and Modify Source.
type PASyncRequest uint8

const (
	NoSync     PASyncRequest = 0x00
	SyncPAST   PASyncRequest = 0x01
	SyncNoPAST PASyncRequest = 0x02
)

func (r PASyncRequest) String() string {
	switch r {
	case NoSync:
		return "no sync"
	case SyncPAST:
		return "sync (PAST available)"
	case SyncNoPAST:
		return "sync (PAST not available)"
	default:
		return fmt.Sprintf("paSync(0x%02x)", uint8(r))
	}
}

// Subgroup is one subgroup of a receive state.
type Subgroup struct {
	// BISSync is the BIS bitmap the client asked for; bit n is BIS index n+1.
	BISSync uint32 `json:"bisSync"`
	// BISSyncState is the BIS bitmap the sink actually synced to.
	BISSyncState uint32 `json:"bisSyncState"`
	Metadata     []byte `json:"metadata"`
}

// ReceiveState is the protocol visible record of one broadcast source.
// The broadcast code is never part of it.
type ReceiveState struct {
	SrcID       SrcID           `json:"srcId"`
	Addr        string          `json:"addr"`
	AddrType    AddrType        `json:"addrType"`
	SID         uint8           `json:"sid"`
	BroadcastID uint32          `json:"broadcastId"`
	PASync      PASyncState     `json:"paSyncState"`
	Encryption  EncryptionState `json:"encryption"`
	Subgroups   []Subgroup      `json:"subgroups"`
}

// Clone returns a deep copy of s.
func (s ReceiveState) Clone() ReceiveState {
	out := s
	out.Subgroups = make([]Subgroup, len(s.Subgroups))
	for i, sg := range s.Subgroups {
		out.Subgroups[i] = sg
		if sg.Metadata != nil {
			out.Subgroups[i].Metadata = append([]byte(nil), sg.Metadata...)
		}
	}
	return out
}

// Equal reports whether s and o carry the same protocol visible fields.
func (s ReceiveState) Equal(o ReceiveState) bool {
	switch {
	case s.SrcID != o.SrcID,
		!SameAddr(NewAddr(s.Addr), NewAddr(o.Addr)),
		s.AddrType != o.AddrType,
		s.SID != o.SID,
		s.BroadcastID != o.BroadcastID,
		s.PASync != o.PASync,
		s.Encryption != o.Encryption,
		len(s.Subgroups) != len(o.Subgroups):
		return false
	}
	for i := range s.Subgroups {
		a, b := s.Subgroups[i], o.Subgroups[i]
		if a.BISSync != b.BISSync || a.BISSyncState != b.BISSyncState || !bytes.Equal(a.Metadata, b.Metadata) {
			return false
		}
	}
	return true
}

func (s ReceiveState) String() string {
	return fmt.Sprintf("src %d [%s/%s sid %d bid 0x%06x] pa %v enc %v subgroups %d",
		s.SrcID, s.Addr, s.AddrType, s.SID, s.BroadcastID, s.PASync, s.Encryption, len(s.Subgroups))
}

// SubgroupParams is the per subgroup part of Add Source and Modify Source.
type SubgroupParams struct {
	BISSync  uint32
	Metadata []byte
}

// SourceParams are the decoded parameters of an Add Source operation.
type SourceParams struct {
	Addr        Addr
	AddrType    AddrType
	SID         uint8
	BroadcastID uint32
	PASync      PASyncRequest
	PAInterval  uint16
	Subgroups   []SubgroupParams
}

// Validate checks p against the ranges BASS allows.
func (p SourceParams) Validate() error {
	switch {
	case p.Addr == nil || len(p.Addr.Bytes()) != 6:
		return ErrInvalidParam
	case p.AddrType > AddrTypeRandom:
		return ErrInvalidParam
	case p.SID > MaxSID:
		return ErrInvalidParam
	case p.BroadcastID > MaxBroadcastID:
		return ErrInvalidParam
	case p.PASync > SyncNoPAST:
		return ErrInvalidParam
	}
	return validateSubgroups(p.Subgroups)
}

// ModifyParams are the decoded parameters of a Modify Source operation.
type ModifyParams struct {
	PASync     PASyncRequest
	PAInterval uint16
	Subgroups  []SubgroupParams

	// Encryption is applied by local modifications only; nil keeps the
	// current state.
	Encryption *EncryptionState
}

// Validate checks p against the ranges BASS allows.
func (p ModifyParams) Validate() error {
	if p.PASync > SyncNoPAST {
		return ErrInvalidParam
	}
	if p.Encryption != nil && *p.Encryption > BadCode {
		return ErrInvalidParam
	}
	return validateSubgroups(p.Subgroups)
}

func validateSubgroups(sgs []SubgroupParams) error {
	if len(sgs) > MaxSubgroups {
		return ErrInvalidParam
	}
	return nil
}

// BroadcastCode is the secret used to decrypt an encrypted BIG.
type BroadcastCode [BroadcastCodeSize]byte
