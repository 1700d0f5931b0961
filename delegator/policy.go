package delegator

import (
	"sync"

	"github.com/rigado/bass"
)

// AllowAll accepts every control point operation.
func AllowAll() bass.Authorizer {
	return bass.AuthorizerFunc(func(bass.AuthRequest) error { return nil })
}

// RejectAll rejects every control point operation with code.
func RejectAll(code uint8) bass.Authorizer {
	return bass.AuthorizerFunc(func(bass.AuthRequest) error { return bass.Reject(code) })
}

// RejectOnce rejects the first operation of kind op with code and accepts
// everything after it.
func RejectOnce(op bass.Operation, code uint8) bass.Authorizer {
	return &rejectOnce{op: op, code: code}
}

type rejectOnce struct {
	sync.Mutex
	op       bass.Operation
	code     uint8
	rejected bool
}

func (r *rejectOnce) Authorize(req bass.AuthRequest) error {
	r.Lock()
	defer r.Unlock()
	if req.Op != r.op || r.rejected {
		return nil
	}
	r.rejected = true
	return bass.Reject(r.code)
}

// OwnerOnly lets a connection modify, remove or set the code of only the
// sources it added. Sources added locally are open to every connection.
func (d *Delegator) OwnerOnly(code uint8) bass.Authorizer {
	return bass.AuthorizerFunc(func(req bass.AuthRequest) error {
		if req.Op == bass.OpAddSource || req.Conn == nil {
			return nil
		}
		// called from the loop, so the table can be read directly
		s := d.table.get(req.SrcID)
		if s == nil || s.owner == nil || s.owner.Handle() == req.Conn.Handle() {
			return nil
		}
		return bass.Reject(code)
	})
}
