package delegator

import (
	"github.com/rigado/bass"
)

// Negotiate turns the requested BIS_Sync bitmaps of a source into one
// decision per subgroup. If every request is zero, every subgroup
// terminates; otherwise every subgroup joins its mask, which may be zero.
// A no-preference request is resolved against available when the
// subgroup's BIS set is known and left as the sentinel otherwise.
func Negotiate(requests []uint32, available []uint32) []bass.BISDecision {
	out := make([]bass.BISDecision, len(requests))

	if AllZero(requests) {
		for i := range out {
			out[i] = bass.BISDecision{Action: bass.BISTerminate}
		}
		return out
	}

	for i, req := range requests {
		mask := req
		if req == bass.BISSyncNoPref && i < len(available) && available[i] != 0 {
			mask = available[i]
		}
		out[i] = bass.BISDecision{Action: bass.BISJoin, Mask: mask}
	}
	return out
}

// AllZero reports whether no subgroup asks for any BIS.
func AllZero(requests []uint32) bool {
	for _, r := range requests {
		if r != 0 {
			return false
		}
	}
	return true
}

// Terminates reports whether decisions stop BIS reception altogether.
func Terminates(decisions []bass.BISDecision) bool {
	if len(decisions) == 0 {
		return true
	}
	for _, dd := range decisions {
		if dd.Action != bass.BISTerminate {
			return false
		}
	}
	return true
}
