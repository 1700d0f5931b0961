package bass

import "time"

// Notifier receives receive state changes. It is called from the delegator
// loop, so it must not block and must not call back into the delegator
// synchronously.
type Notifier interface {
	ReceiveStateChanged(ReceiveState)
	ReceiveStateRemoved(SrcID)
}

// AuthRequest describes a control point operation awaiting authorization.
type AuthRequest struct {
	Op    Operation
	Conn  Conn
	SrcID SrcID

	// Source is set for Add Source only; SrcID is meaningless then.
	Source *SourceParams
}

// Authorizer vetoes control point operations. A nil error accepts the
// operation; anything else, normally the result of Reject, rejects it.
type Authorizer interface {
	Authorize(AuthRequest) error
}

// AuthorizerFunc adapts a function to an Authorizer.
type AuthorizerFunc func(AuthRequest) error

func (f AuthorizerFunc) Authorize(r AuthRequest) error {
	return f(r)
}

// SyncTarget names a periodic advertising train.
type SyncTarget struct {
	Addr     Addr
	AddrType AddrType
	SID      uint8
}

// Controller is the PA sync surface of the controller. Every method issues
// an asynchronous request and returns without waiting for the controller;
// outcomes arrive later through a SyncEventHandler.
type Controller interface {
	CreateSync(t SyncTarget, skip uint16, timeout uint16) error
	CancelCreateSync(t SyncTarget) error
	TerminateSync(syncHandle uint16) error
	SubscribePAST(connHandle uint16, skip uint16, timeout uint16) error
	UnsubscribePAST(connHandle uint16) error
}

// BISAction is the outcome of BIS sync negotiation for one subgroup.
type BISAction uint8

const (
	BISJoin BISAction = iota
	BISTerminate
)

func (a BISAction) String() string {
	if a == BISJoin {
		return "join"
	}
	return "terminate"
}

// BISDecision is the negotiated BIS membership of one subgroup.
type BISDecision struct {
	Action BISAction
	Mask   uint32
}

// BISHandler is told when the desired BIS membership of a synced source
// changes. code is nil unless a broadcast code was written.
type BISHandler interface {
	SyncBIS(id SrcID, decisions []BISDecision, code *BroadcastCode)
}

// Clock schedules the delegator's sync watchdogs.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// SystemClock is a Clock backed by the time package.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
