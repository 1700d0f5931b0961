package bass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testState() ReceiveState {
	return ReceiveState{
		SrcID:       1,
		Addr:        "c0:ff:ee:00:00:01",
		AddrType:    AddrTypeRandom,
		SID:         3,
		BroadcastID: 0xABCDEF,
		PASync:      PASyncSynced,
		Encryption:  NotEncrypted,
		Subgroups: []Subgroup{
			{BISSync: 0x3, BISSyncState: 0x1, Metadata: []byte{0x03, 0x02, 0x04, 0x00}},
		},
	}
}

func TestReceiveStateClone(t *testing.T) {
	s := testState()
	c := s.Clone()
	assert.True(t, s.Equal(c))

	c.Subgroups[0].Metadata[0] = 0xFF
	c.Subgroups[0].BISSyncState = 0x2
	assert.Equal(t, byte(0x03), s.Subgroups[0].Metadata[0])
	assert.Equal(t, uint32(0x1), s.Subgroups[0].BISSyncState)
	assert.False(t, s.Equal(c))
}

func TestReceiveStateEqual(t *testing.T) {
	a := testState()

	b := testState()
	b.Addr = "C0:FF:EE:00:00:01"
	assert.True(t, a.Equal(b), "address case is not significant")

	b = testState()
	b.PASync = PASyncFailed
	assert.False(t, a.Equal(b))

	b = testState()
	b.Subgroups = append(b.Subgroups, Subgroup{})
	assert.False(t, a.Equal(b))

	b = testState()
	b.Encryption = BadCode
	assert.False(t, a.Equal(b))
}

func TestSourceParamsValidate(t *testing.T) {
	valid := SourceParams{
		Addr:        NewAddr("c0:ff:ee:00:00:01"),
		AddrType:    AddrTypePublic,
		SID:         MaxSID,
		BroadcastID: MaxBroadcastID,
		PASync:      SyncNoPAST,
		PAInterval:  PAIntervalUnknown,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *SourceParams)
	}{
		{"nil addr", func(p *SourceParams) { p.Addr = nil }},
		{"short addr", func(p *SourceParams) { p.Addr = NewAddr("c0:ff") }},
		{"addr type", func(p *SourceParams) { p.AddrType = 2 }},
		{"sid", func(p *SourceParams) { p.SID = MaxSID + 1 }},
		{"broadcast id", func(p *SourceParams) { p.BroadcastID = MaxBroadcastID + 1 }},
		{"pa sync", func(p *SourceParams) { p.PASync = 3 }},
		{"subgroups", func(p *SourceParams) { p.Subgroups = make([]SubgroupParams, MaxSubgroups+1) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			assert.Equal(t, ErrInvalidParam, p.Validate())
		})
	}
}

func TestModifyParamsValidate(t *testing.T) {
	assert.NoError(t, ModifyParams{PASync: SyncPAST}.Validate())
	assert.Equal(t, ErrInvalidParam, ModifyParams{PASync: 3}.Validate())

	enc := EncryptionState(4)
	assert.Equal(t, ErrInvalidParam, ModifyParams{Encryption: &enc}.Validate())
}

func TestPASyncStateIsSynced(t *testing.T) {
	assert.True(t, PASyncSynced.IsSynced())
	assert.False(t, PASyncInfoRequest.IsSynced())
	assert.False(t, PASyncNoPAST.IsSynced())
}
