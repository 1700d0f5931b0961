package delegator

import (
	"testing"

	"github.com/rigado/bass"
	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		requests  []uint32
		available []uint32
		want      []bass.BISDecision
	}{
		{
			name:     "all zero",
			requests: []uint32{0, 0},
			want: []bass.BISDecision{
				{Action: bass.BISTerminate},
				{Action: bass.BISTerminate},
			},
		},
		{
			name:     "one subgroup zero",
			requests: []uint32{0x0, 0x1},
			want: []bass.BISDecision{
				{Action: bass.BISJoin, Mask: 0x0},
				{Action: bass.BISJoin, Mask: 0x1},
			},
		},
		{
			name:      "no preference resolved",
			requests:  []uint32{bass.BISSyncNoPref},
			available: []uint32{0x6},
			want:      []bass.BISDecision{{Action: bass.BISJoin, Mask: 0x6}},
		},
		{
			name:     "no preference unknown",
			requests: []uint32{bass.BISSyncNoPref},
			want:     []bass.BISDecision{{Action: bass.BISJoin, Mask: bass.BISSyncNoPref}},
		},
		{
			name:     "no subgroups",
			requests: nil,
			want:     []bass.BISDecision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Negotiate(tt.requests, tt.available)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, AllZero(tt.requests), Terminates(got))
		})
	}
}
